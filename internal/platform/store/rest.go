package store

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// RESTStore is a thin client for a PostgREST-style table API:
//
//	GET    /rest/v1/<table>?select=*&order=<col>.desc&<col>=eq.<v>
//	POST   /rest/v1/<table>                 (Prefer: return=representation)
//	PATCH  /rest/v1/<table>?id=eq.<id>
//	DELETE /rest/v1/<table>?id=eq.<id>
type RESTStore struct {
	client *resty.Client
}

// NewRESTStore builds a client against baseURL, authenticating with the
// project key both as the apikey header and as the bearer token.
func NewRESTStore(baseURL, apiKey string, timeout time.Duration) *RESTStore {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")+"/rest/v1").
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("apikey", apiKey).
		SetAuthToken(apiKey)
	return &RESTStore{client: client}
}

func (s *RESTStore) Select(ctx context.Context, table string, q Query) ([]Row, error) {
	if err := checkIdent(table); err != nil {
		return nil, err
	}
	req := s.client.R().SetContext(ctx).SetQueryParam("select", "*")
	for _, col := range eqKeys(q.Eq) {
		if err := checkIdent(col); err != nil {
			return nil, err
		}
		req.SetQueryParam(col, fmt.Sprintf("eq.%v", q.Eq[col]))
	}
	if q.Order != "" {
		if err := checkIdent(q.Order); err != nil {
			return nil, err
		}
		dir := "asc"
		if q.Desc {
			dir = "desc"
		}
		req.SetQueryParam("order", q.Order+"."+dir)
	}

	var out []Row
	resp, err := req.SetResult(&out).Get("/" + table)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	if resp.IsError() {
		return nil, responseError("select", table, resp)
	}
	return out, nil
}

func (s *RESTStore) Insert(ctx context.Context, table string, row Row) (Row, error) {
	if err := checkIdent(table); err != nil {
		return nil, err
	}
	var out []Row
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Prefer", "return=representation").
		SetBody(row).
		SetResult(&out).
		Post("/" + table)
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", table, err)
	}
	if resp.IsError() {
		return nil, responseError("insert", table, resp)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (s *RESTStore) Update(ctx context.Context, table, id string, row Row) (Row, error) {
	if err := checkIdent(table); err != nil {
		return nil, err
	}
	body := row.Clone()
	delete(body, "id")

	var out []Row
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Prefer", "return=representation").
		SetQueryParam("id", "eq."+id).
		SetBody(body).
		SetResult(&out).
		Patch("/" + table)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", table, err)
	}
	if resp.IsError() {
		return nil, responseError("update", table, resp)
	}
	if resp.StatusCode() == http.StatusNoContent {
		return nil, nil
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out[0], nil
}

func (s *RESTStore) Delete(ctx context.Context, table, id string) error {
	if err := checkIdent(table); err != nil {
		return err
	}
	var out []Row
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Prefer", "return=representation").
		SetQueryParam("id", "eq."+id).
		SetResult(&out).
		Delete("/" + table)
	if err != nil {
		return fmt.Errorf("delete %s: %w", table, err)
	}
	if resp.IsError() {
		return responseError("delete", table, resp)
	}
	if resp.StatusCode() != http.StatusNoContent && len(out) == 0 {
		return ErrNotFound
	}
	return nil
}

func responseError(op, table string, resp *resty.Response) error {
	return fmt.Errorf("%s %s: %s: %s", op, table, resp.Status(), strings.TrimSpace(resp.String()))
}
