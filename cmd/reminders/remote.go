package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/urfave/cli"
)

var httpClient = &http.Client{Timeout: 10 * time.Second}

// remote returns an action that calls one harness endpoint and prints the reply.
func remote(method, path string) cli.ActionFunc {
	return func(c *cli.Context) error {
		body, err := callAPI(context.Background(), c.String("addr"), method, path)
		if err != nil {
			return err
		}
		_, err = c.App.Writer.Write(body)
		return err
	}
}

func callAPI(ctx context.Context, addr, method, path string) ([]byte, error) {
	endpoint := strings.TrimRight(addr, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, endpoint, http.NoBody)
	if err != nil {
		return nil, err
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s %s: http %d: %s", method, path, resp.StatusCode, string(raw))
	}
	if len(raw) == 0 {
		return []byte("ok\n"), nil
	}

	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return append(raw, '\n'), nil
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}
