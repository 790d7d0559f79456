package feed

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"cityflow/internal/accident"
)

// REST reads the CMPD accident list from its JSON endpoint.
type REST struct {
	endpoint string
	client   *http.Client
	b        builder
}

func NewREST(endpoint string, timeout time.Duration, loc *time.Location, logger *log.Logger) *REST {
	return &REST{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		b:        newBuilder(loc, logger),
	}
}

func (r *REST) Fetch(ctx context.Context) ([]accident.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", r.endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get %s: %w: %d", r.endpoint, ErrStatus, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", r.endpoint, err)
	}
	return r.parse(body)
}

func (r *REST) parse(body []byte) ([]accident.Record, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("feed response is not valid JSON")
	}
	root := gjson.ParseBytes(body)
	if !root.IsArray() {
		return nil, fmt.Errorf("feed response is not a JSON array")
	}

	var items []fields
	root.ForEach(func(_, item gjson.Result) bool {
		raw, _ := item.Value().(map[string]interface{})
		items = append(items, fields{
			EventNo:     item.Get("EventNo").String(),
			DateTimeAdd: item.Get("DateTimeAdd").String(),
			Division:    item.Get("Division").String(),
			Address:     item.Get("Address").String(),
			EventType:   item.Get("EventType").String(),
			EventDesc:   item.Get("EventDesc").String(),
			Latitude:    item.Get("Latitude").String(),
			Longitude:   item.Get("Longitude").String(),
			XCoord:      item.Get("XCoord").String(),
			YCoord:      item.Get("YCoord").String(),
			Raw:         raw,
		})
		return true
	})
	return r.b.collect(items), nil
}
