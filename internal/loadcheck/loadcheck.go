// Package loadcheck verifies the counts returned by concurrent invocations:
// every invocation must get its own value, with no duplicates and no gaps.
package loadcheck

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"

	"github.com/samber/lo"
	"github.com/tckz/visitor-counter/internal/counter"
	"github.com/tckz/visitor-counter/internal/visitor"
)

// maxBodySize bounds what is read from a remote counter.
const maxBodySize = 4 << 10

// InvokeFunc performs one invocation and returns the count it reported.
type InvokeFunc func(ctx context.Context) (counter.Count, error)

type Report struct {
	Returned   int     `json:"returned"`
	Min        int64   `json:"min"`
	Max        int64   `json:"max"`
	Duplicates []int64 `json:"duplicates,omitempty"`
	Gaps       int64   `json:"gaps"`
	// Baseline is the value before the run, when it could be read.
	Baseline *int64 `json:"baseline,omitempty"`
}

func (r Report) OK() bool {
	return len(r.Duplicates) == 0 && r.Gaps == 0
}

// Analyze checks that counts are exactly baseline+1..baseline+len(counts).
// Without a baseline only contiguity is checked, since other clients may
// have incremented the counter before the run.
func Analyze(baseline *int64, counts []int64) Report {
	rep := Report{
		Returned:   len(counts),
		Duplicates: lo.FindDuplicates(counts),
		Baseline:   baseline,
	}
	if len(counts) == 0 {
		return rep
	}

	rep.Min = slices.Min(counts)
	rep.Max = slices.Max(counts)

	first, last := rep.Min, rep.Max
	if baseline != nil {
		first, last = *baseline+1, *baseline+int64(len(counts))
	}
	inRange := lo.Filter(lo.Uniq(counts), func(n int64, _ int) bool {
		return n >= first && n <= last
	})
	rep.Gaps = last - first + 1 - int64(len(inRange))
	return rep
}

// ServiceInvoker calls the service in process.
func ServiceInvoker(svc *visitor.Service) InvokeFunc {
	return func(ctx context.Context) (counter.Count, error) {
		r, err := svc.Handle(ctx, nil)
		if err != nil {
			return counter.Count{}, err
		}
		return DecodeBody(r.StatusCode, []byte(r.Body))
	}
}

// HTTPInvoker issues GET url with client.
func HTTPInvoker(client *http.Client, url string) InvokeFunc {
	return func(ctx context.Context) (counter.Count, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return counter.Count{}, err
		}
		res, err := client.Do(req)
		if err != nil {
			return counter.Count{}, err
		}
		defer res.Body.Close()
		b, err := io.ReadAll(io.LimitReader(res.Body, maxBodySize))
		if err != nil {
			return counter.Count{}, err
		}
		return DecodeBody(res.StatusCode, b)
	}
}

func DecodeBody(status int, b []byte) (counter.Count, error) {
	if status != http.StatusOK {
		return counter.Count{}, fmt.Errorf("status=%d", status)
	}
	var body struct {
		Count *counter.Count `json:"count"`
	}
	if err := json.Unmarshal(b, &body); err != nil {
		return counter.Count{}, fmt.Errorf("json.Unmarshal: %w", err)
	}
	if body.Count == nil {
		return counter.Count{}, fmt.Errorf("no count in body: %s", b)
	}
	return *body.Count, nil
}
