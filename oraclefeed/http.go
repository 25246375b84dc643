package oraclefeed

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// HTTP polls a JSON price endpoint. The response is picked apart with a
// gjson path, so any feed shape works as long as the price is a single
// number, e.g. path "data.price" against {"data":{"price":"1.0042"}}.
type HTTP struct {
	url    string
	path   string
	client *http.Client
}

// NewHTTP builds a feed against the given endpoint. The URL may contain
// {base} and {quote} placeholders which are substituted per query.
func NewHTTP(url, path string, timeout time.Duration) *HTTP {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTP{
		url:    url,
		path:   path,
		client: &http.Client{Timeout: timeout},
	}
}

func (h *HTTP) CurrentPrice(ctx context.Context, base, quote string) (*big.Int, error) {
	url := strings.NewReplacer("{base}", base, "{quote}", quote).Replace(h.url)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	raw := gjson.GetBytes(body, h.path)
	if !raw.Exists() {
		return nil, fmt.Errorf("%w: path %q missing in response", ErrUnavailable, h.path)
	}
	price, err := decimal.NewFromString(raw.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if price.Sign() <= 0 {
		return nil, fmt.Errorf("%w: non-positive price", ErrUnavailable)
	}
	return price.Shift(18).BigInt(), nil
}
