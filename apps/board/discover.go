package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	discoverysvc "github.com/trezcool/masomo-board/services/discovery"
)

var browseFunc = discoverysvc.Browse // mockable

func (cli *commandLine) discover(timeout time.Duration) error {
	servers, err := browseFunc(context.Background(), timeout)
	if err != nil {
		return err
	}
	if len(servers) == 0 {
		_, _ = fmt.Fprintln(cli.out, "no board server found")
		return nil
	}
	for _, srv := range servers {
		_, _ = fmt.Fprintf(cli.out, "%s\t%s\t%s\n", srv.Instance, srv.URL(), strings.Join(srv.Info, " "))
	}
	return nil
}
