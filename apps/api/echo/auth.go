package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-board/core"
)

const claimsContextKey = "userToken"

// Claims represents the authorization claims transmitted via a JWT.
// Tokens are issued by the Masomo backend; the board only verifies them.
type Claims struct {
	jwt.StandardClaims
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
}

func (c Claims) Person() core.Person {
	return core.Person{ID: c.Subject, Username: c.Username, Email: c.Email}
}

func GetUserClaims(usr core.Person, conf *core.Config) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   usr.ID,
			Audience:  "Academia",
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		Username: usr.Username,
		Email:    usr.Email,
	}
}

type jwtAuth struct {
	// header authenticates regular requests: `Authorization: Bearer <token>`.
	header middleware.JWTConfig
	// query authenticates websocket upgrades, browsers cannot set their headers: `?token=<token>`.
	query middleware.JWTConfig
}

func newJWTAuth(conf *core.Config) *jwtAuth {
	header := middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    claimsContextKey,
		Claims:        new(Claims),
	}
	query := header
	query.TokenLookup = "query:token"
	return &jwtAuth{header: header, query: query}
}

func (a *jwtAuth) Header() echo.MiddlewareFunc { return middleware.JWTWithConfig(a.header) }

func (a *jwtAuth) Query() echo.MiddlewareFunc { return middleware.JWTWithConfig(a.query) }

// GenerateToken generates a signed JWT token string representing the user Claims.
func (a *jwtAuth) GenerateToken(claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(a.header.SigningMethod)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(a.header.SigningKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(claimsContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}
