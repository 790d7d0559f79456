package feed

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"cityflow/internal/accident"
)

const DefaultSOAPEndpoint = "http://maps.cmpd.org/datafeeds/gisservice.asmx"

// soapEnvelope requests the CMPDAccidents operation.
const soapEnvelope = `<?xml version="1.0" encoding="utf-8"?>` +
	`<soap:Envelope xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xmlns:xsd="http://www.w3.org/2001/XMLSchema" xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">` +
	`<soap:Body><CMPDAccidents xmlns="http://maps.cmpd.org/" /></soap:Body></soap:Envelope>`

type soapAccident struct {
	EventNo     string `xml:"EVENT_NO"`
	DateTimeAdd string `xml:"DATETIME_ADD"`
	Division    string `xml:"DIVISION"`
	Address     string `xml:"ADDRESS"`
	EventType   string `xml:"EVENT_TYPE"`
	EventDesc   string `xml:"EVENT_DESC"`
	XCoord      string `xml:"X_COORD"`
	YCoord      string `xml:"Y_COORD"`
	Latitude    string `xml:"LATITUDE"`
	Longitude   string `xml:"LONGITUDE"`
}

// SOAP reads the CMPD accident list from the gisservice SOAP endpoint.
type SOAP struct {
	endpoint string
	client   *http.Client
	b        builder
}

func NewSOAP(endpoint string, timeout time.Duration, loc *time.Location, logger *log.Logger) *SOAP {
	if endpoint == "" {
		endpoint = DefaultSOAPEndpoint
	}
	return &SOAP{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		b:        newBuilder(loc, logger),
	}
}

func (s *SOAP) Fetch(ctx context.Context) ([]accident.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+"?op=CMPDAccidents", strings.NewReader(soapEnvelope))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "text/xml")
	req.Header.Set("Accept", "application/xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", s.endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("post %s: %w: %d", s.endpoint, ErrStatus, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.endpoint, err)
	}
	return s.parse(body)
}

// parse decodes every ACCIDENTS element in the response, wherever the
// diffgram nests it.
func (s *SOAP) parse(body []byte) ([]accident.Record, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	var items []fields
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode soap response: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "ACCIDENTS" {
			continue
		}
		var a soapAccident
		if err := dec.DecodeElement(&a, &start); err != nil {
			return nil, fmt.Errorf("decode ACCIDENTS element: %w", err)
		}
		items = append(items, fields{
			EventNo:     a.EventNo,
			DateTimeAdd: a.DateTimeAdd,
			Division:    a.Division,
			Address:     a.Address,
			EventType:   a.EventType,
			EventDesc:   a.EventDesc,
			Latitude:    a.Latitude,
			Longitude:   a.Longitude,
			XCoord:      a.XCoord,
			YCoord:      a.YCoord,
			Raw: map[string]any{
				"EVENT_NO":     a.EventNo,
				"DATETIME_ADD": a.DateTimeAdd,
				"DIVISION":     a.Division,
				"ADDRESS":      a.Address,
				"EVENT_TYPE":   a.EventType,
				"EVENT_DESC":   a.EventDesc,
				"X_COORD":      a.XCoord,
				"Y_COORD":      a.YCoord,
				"LATITUDE":     a.Latitude,
				"LONGITUDE":    a.Longitude,
			},
		})
	}
	return s.b.collect(items), nil
}
