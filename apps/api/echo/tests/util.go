package tests

import (
	"bytes"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/goccy/go-json"
	"github.com/go-playground/validator/v10"

	. "github.com/trezcool/masomo-board/apps/api/echo"
	"github.com/trezcool/masomo-board/core"
	"github.com/trezcool/masomo-board/core/board"
	"github.com/trezcool/masomo-board/core/surface"
	logsvc "github.com/trezcool/masomo-board/services/logger"
	inmemdb "github.com/trezcool/masomo-board/storage/database/inmem"
	"github.com/trezcool/masomo-board/tests"
)

var (
	prof = core.Person{ID: "u-1", Username: "prof", Email: "prof@test.cd"}

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
)

type app struct {
	*Server
	store board.Store
	conf  *core.Config
}

func setup(t *testing.T) app {
	t.Helper()
	conf := testutil.NewConfig(t)
	conf.Debug = false
	conf.Board.MaxDocumentBytes = 4096

	logger := logsvc.NewRollbarLogger(log.New(os.Stderr, "API : ", 0), conf)
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	surface.InitValidators(validate, translator)

	store := inmemdb.NewWhiteboardStore(inmemdb.Open())
	srv := NewServer(ServerDeps{
		Conf:       conf,
		Logger:     logger,
		Store:      store,
		Validate:   validate,
		Translator: translator,
	})
	t.Cleanup(func() { _ = srv.Close() })
	return app{Server: srv, store: store, conf: conf}
}

func (a app) token(t *testing.T) string {
	t.Helper()
	token, err := a.GenerateToken(prof)
	if err != nil {
		t.Fatalf("GenerateToken() failed: %v", err)
	}
	return token
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData != nil {
		testutil.CheckJSON(t, tt.wantData, rec.Body.Bytes())
	}
}
