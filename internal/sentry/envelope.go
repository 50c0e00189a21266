package sentry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mdobak/go-xerrors"
	"github.com/songify/reporter/internal/scrub"
)

// ErrMalformedEnvelope is returned when an envelope cannot be split into items.
var ErrMalformedEnvelope = errors.New("malformed sentry envelope")

// scrubbedItemTypes are envelope items whose payload is an event.
var scrubbedItemTypes = map[string]bool{
	"event":       true,
	"transaction": true,
}

// ScrubEnvelope scrubs event and transaction items of a newline-delimited
// Sentry envelope. Other items are copied unchanged. Item lengths are
// rewritten to match the scrubbed payload.
func (e *EventScrubber) ScrubEnvelope(body []byte) ([]byte, error) {
	header, rest, _ := bytes.Cut(body, []byte("\n"))
	if len(bytes.TrimSpace(header)) == 0 {
		return nil, xerrors.WithStackTrace(fmt.Errorf("%w: missing header", ErrMalformedEnvelope), 0)
	}

	o := e.scrubber.Options()

	var out bytes.Buffer
	out.Write(header)

	for len(bytes.TrimSpace(rest)) > 0 {
		var itemLine []byte
		itemLine, rest, _ = bytes.Cut(rest, []byte("\n"))

		itemHeader, err := scrub.ParseJSON(itemLine)
		if err != nil {
			return nil, xerrors.WithStackTrace(fmt.Errorf("%w: item header: %w", ErrMalformedEnvelope, err), 0)
		}

		var payload []byte
		if n, ok := itemLength(itemHeader); ok {
			if n < 0 || n > len(rest) {
				return nil, xerrors.WithStackTrace(fmt.Errorf("%w: item length %d exceeds body", ErrMalformedEnvelope, n), 0)
			}
			payload, rest = rest[:n], rest[n:]
			rest = bytes.TrimPrefix(rest, []byte("\n"))
		} else {
			payload, rest, _ = bytes.Cut(rest, []byte("\n"))
		}

		if itemType, _ := itemHeader.Get("type"); scrubbedItemTypes[fmt.Sprint(itemType)] {
			payload, err = e.scrubEventPayload(payload, o)
			if err != nil {
				return nil, err
			}
			itemHeader.Set("length", len(payload))
		}

		headerBytes, err := json.Marshal(itemHeader)
		if err != nil {
			return nil, err
		}
		out.WriteByte('\n')
		out.Write(headerBytes)
		out.WriteByte('\n')
		out.Write(payload)
	}

	out.WriteByte('\n')
	return out.Bytes(), nil
}

func itemLength(itemHeader *scrub.Params) (int, bool) {
	v, ok := itemHeader.Get("length")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(fmt.Sprint(v))
	if err != nil {
		return 0, false
	}
	return n, true
}

// scrubEventPayload scrubs the parts of a JSON event that carry user data.
func (e *EventScrubber) scrubEventPayload(payload []byte, o scrub.Options) ([]byte, error) {
	event, err := scrub.ParseJSON(payload)
	if err != nil {
		return nil, xerrors.WithStackTrace(fmt.Errorf("%w: event payload: %w", ErrMalformedEnvelope, err), 0)
	}

	if v, ok := event.Get("request"); ok {
		if req, ok := v.(*scrub.Params); ok {
			event.Set("request", e.scrubRequestObject(req, o))
		}
	}

	for _, key := range []string{"extra", "user"} {
		if v, ok := event.Get(key); ok {
			if p, ok := v.(*scrub.Params); ok {
				event.Set(key, e.scrubber.Scrub(p, o))
			}
		}
	}

	if v, ok := event.Get("contexts"); ok {
		if contexts, ok := v.(*scrub.Params); ok {
			scrubbed := scrub.NewParams(contexts.Len())
			contexts.Range(func(name string, c any) bool {
				if p, ok := c.(*scrub.Params); ok {
					c = e.scrubber.Scrub(p, o)
				}
				scrubbed.Set(name, c)
				return true
			})
			event.Set("contexts", scrubbed)
		}
	}

	if v, ok := event.Get("tags"); ok {
		if tags, ok := v.(*scrub.Params); ok {
			scrubbed := scrub.NewParams(tags.Len())
			tags.Range(func(key string, value any) bool {
				if o.RedactAll || scrub.Matches(o.FieldsPattern, key) {
					value = e.scrubber.Marker()
				}
				scrubbed.Set(key, value)
				return true
			})
			event.Set("tags", scrubbed)
		}
	}

	if v, ok := event.Get("breadcrumbs"); ok {
		event.Set("breadcrumbs", e.scrubBreadcrumbs(v, o))
	}

	return json.Marshal(event)
}

func (e *EventScrubber) scrubRequestObject(req *scrub.Params, o scrub.Options) *scrub.Params {
	contentType := ""
	out := scrub.NewParams(req.Len())

	if v, ok := req.Get("headers"); ok {
		if headers, ok := v.(*scrub.Params); ok {
			scrubbed := scrub.NewParams(headers.Len())
			headers.Range(func(name string, value any) bool {
				if strings.EqualFold(name, "Content-Type") {
					contentType = fmt.Sprint(value)
				}
				if e.sensitiveHeader(name, o) {
					value = e.scrubber.Marker()
				}
				scrubbed.Set(name, value)
				return true
			})
			req.Set("headers", scrubbed)
		}
	}

	req.Range(func(key string, value any) bool {
		switch key {
		case "headers", "method":
		case "url":
			if s, ok := value.(string); ok {
				value = e.scrubURL(s, o)
			} else {
				value = e.scrubber.ScrubValue(key, value, o)
			}
		case "data":
			switch v := value.(type) {
			case string:
				value = e.scrubBody(v, contentType, o)
			case *scrub.Params:
				value = e.scrubber.Scrub(v, o)
			default:
				value = e.scrubber.ScrubValue(key, value, o)
			}
		case "query_string":
			if s, ok := value.(string); ok {
				value = e.scrubQuery(s, o)
			} else {
				value = e.scrubber.ScrubValue(key, value, o)
			}
		case "cookies":
			if s, ok := value.(string); ok {
				value = e.scrubCookies(s, o)
			} else {
				value = e.scrubber.ScrubValue(key, value, o)
			}
		default:
			value = e.scrubber.ScrubValue(key, value, o)
		}
		out.Set(key, value)
		return true
	})
	return out
}

// scrubBreadcrumbs handles both the list and {"values": [...]} forms.
func (e *EventScrubber) scrubBreadcrumbs(v any, o scrub.Options) any {
	switch crumbs := v.(type) {
	case []any:
		out := make([]any, len(crumbs))
		for i, c := range crumbs {
			out[i] = c
			p, ok := c.(*scrub.Params)
			if !ok {
				continue
			}
			if data, ok := p.Get("data"); ok {
				if dp, ok := data.(*scrub.Params); ok {
					p.Set("data", e.scrubber.Scrub(dp, o))
				}
			}
		}
		return out
	case *scrub.Params:
		if values, ok := crumbs.Get("values"); ok {
			crumbs.Set("values", e.scrubBreadcrumbs(values, o))
		}
		return crumbs
	default:
		return v
	}
}
