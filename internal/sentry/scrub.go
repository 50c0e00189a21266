// Package sentry provides data scrubbing utilities for Sentry events
// to ensure sensitive information is not transmitted to the error tracking service.
package sentry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/songify/reporter/internal/scrub"
)

// sensitiveHeaders are HTTP headers that are always redacted from Sentry events.
var sensitiveHeaders = map[string]bool{
	"Authorization":       true,
	"Cookie":              true,
	"Set-Cookie":          true,
	"Proxy-Authorization": true,
	"X-Api-Key":           true,
}

type extraFieldsKey struct{}

// WithExtraFields attaches call-specific sensitive field names to ctx. Events
// captured with that context in their hint scrub these fields too.
func WithExtraFields(ctx context.Context, fields ...string) context.Context {
	existing := ExtraFields(ctx)
	merged := make([]string, 0, len(existing)+len(fields))
	merged = append(merged, existing...)
	merged = append(merged, fields...)
	return context.WithValue(ctx, extraFieldsKey{}, merged)
}

// ExtraFields returns the field names attached with WithExtraFields.
func ExtraFields(ctx context.Context) []string {
	if ctx == nil {
		return nil
	}
	fields, _ := ctx.Value(extraFieldsKey{}).([]string)
	return fields
}

// EventScrubber removes sensitive data from events before they are sent.
type EventScrubber struct {
	scrubber *scrub.Scrubber
}

// NewEventScrubber creates an EventScrubber backed by the params scrubber.
func NewEventScrubber(s *scrub.Scrubber) *EventScrubber {
	return &EventScrubber{scrubber: s}
}

// ScrubEvent removes sensitive data from a Sentry event before it is sent.
// It redacts sensitive headers, scrubs request bodies, query strings and
// cookies, and scrubs extra data, contexts, tags and breadcrumbs.
func (e *EventScrubber) ScrubEvent(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
	if event == nil {
		return nil
	}

	var extra []string
	if hint != nil {
		extra = ExtraFields(hint.Context)
	}
	o := e.scrubber.Options(extra...)

	if event.Request != nil {
		e.scrubRequest(event.Request, o)
	}

	if event.Extra != nil {
		event.Extra = e.scrubMap(event.Extra, o)
	}

	for name, c := range event.Contexts {
		event.Contexts[name] = sentry.Context(e.scrubMap(c, o))
	}

	for key := range event.Tags {
		if o.RedactAll || scrub.Matches(o.FieldsPattern, key) {
			event.Tags[key] = e.scrubber.Marker()
		}
	}

	for i := range event.Breadcrumbs {
		if event.Breadcrumbs[i] == nil || event.Breadcrumbs[i].Data == nil {
			continue
		}
		event.Breadcrumbs[i].Data = e.scrubMap(event.Breadcrumbs[i].Data, o)
	}

	return event
}

// ScrubTransaction applies the same scrubbing logic to transaction events.
func (e *EventScrubber) ScrubTransaction(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
	return e.ScrubEvent(event, hint)
}

func (e *EventScrubber) scrubRequest(req *sentry.Request, o scrub.Options) {
	contentType := ""
	for header := range req.Headers {
		if strings.EqualFold(header, "Content-Type") {
			contentType = req.Headers[header]
		}
		if e.sensitiveHeader(header, o) {
			req.Headers[header] = e.scrubber.Marker()
		}
	}

	req.URL = e.scrubURL(req.URL, o)
	req.Data = e.scrubBody(req.Data, contentType, o)
	req.QueryString = e.scrubQuery(req.QueryString, o)
	req.Cookies = e.scrubCookies(req.Cookies, o)
}

func (e *EventScrubber) sensitiveHeader(name string, o scrub.Options) bool {
	return sensitiveHeaders[http.CanonicalHeaderKey(name)] || o.RedactAll || scrub.Matches(o.FieldsPattern, name)
}

// scrubMap scrubs a plain map. Nested values keep their scrubbed *Params form,
// which JSON-encodes in key order.
func (e *EventScrubber) scrubMap(m map[string]any, o scrub.Options) map[string]any {
	scrubbed := e.scrubber.Scrub(paramsOf(m), o)
	out := make(map[string]any, scrubbed.Len())
	scrubbed.Range(func(key string, value any) bool {
		out[key] = value
		return true
	})
	return out
}

// scrubBody scrubs a JSON object or form-encoded body. Bodies that are
// neither are dropped.
func (e *EventScrubber) scrubBody(data, contentType string, o scrub.Options) string {
	if data == "" {
		return ""
	}
	if o.RedactAll {
		return e.scrubber.Marker()
	}

	trimmed := strings.TrimSpace(data)
	if strings.HasPrefix(trimmed, "{") {
		p, err := scrub.ParseJSON([]byte(trimmed))
		if err != nil {
			return ""
		}
		out, err := json.Marshal(e.scrubber.Scrub(p, o))
		if err != nil {
			return ""
		}
		return string(out)
	}

	if strings.Contains(contentType, "application/x-www-form-urlencoded") {
		return e.scrubQuery(data, o)
	}

	return ""
}

func (e *EventScrubber) scrubQuery(qs string, o scrub.Options) string {
	if qs == "" {
		return ""
	}
	values, err := url.ParseQuery(qs)
	if err != nil {
		return ""
	}
	return toValues(e.scrubber.Scrub(paramsOf(values), o)).Encode()
}

// scrubURL scrubs the query and any key=value fragment of a request URL.
// A URL that does not parse keeps only the part before its query.
func (e *EventScrubber) scrubURL(raw string, o scrub.Options) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		base, _, _ := strings.Cut(raw, "?")
		base, _, _ = strings.Cut(base, "#")
		return base
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), e.scrubber.Marker())
	}
	if u.RawQuery != "" {
		u.RawQuery = e.scrubQuery(u.RawQuery, o)
	}
	if strings.Contains(u.Fragment, "=") {
		u.Fragment = e.scrubQuery(u.Fragment, o)
		u.RawFragment = ""
	}
	return u.String()
}

func (e *EventScrubber) scrubCookies(raw string, o scrub.Options) string {
	if raw == "" {
		return ""
	}
	cookies, err := http.ParseCookie(raw)
	if err != nil {
		return ""
	}

	p := scrub.NewParams(len(cookies))
	for _, c := range cookies {
		p.Set(c.Name, c.Value)
	}
	scrubbed := e.scrubber.Scrub(p, o)

	parts := make([]string, 0, scrubbed.Len())
	scrubbed.Range(func(key string, value any) bool {
		parts = append(parts, key+"="+fmt.Sprint(value))
		return true
	})
	return strings.Join(parts, "; ")
}

func paramsOf(m any) *scrub.Params {
	p, err := scrub.ToParams(m)
	if err != nil {
		return scrub.NewParams()
	}
	return p
}

func toValues(p *scrub.Params) url.Values {
	values := make(url.Values, p.Len())
	p.Range(func(key string, value any) bool {
		switch v := value.(type) {
		case []any:
			for _, item := range v {
				values.Add(key, fmt.Sprint(item))
			}
		default:
			values.Add(key, fmt.Sprint(v))
		}
		return true
	})
	return values
}
