package signal

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// maxSignalResponseSize bounds how much of a collector response is read.
const maxSignalResponseSize = 1 << 20

// HTTPCollector fetches congestion signals from a mempool.space-compatible
// HTTP API. It owns its own timeout; callers treat it as a synchronous
// capability.
type HTTPCollector struct {
	baseURL string
	client  *http.Client
	now     func() time.Time
}

// NewHTTPCollector returns an HTTPCollector against the given base URL with
// the given hard fetch timeout.
func NewHTTPCollector(baseURL string, timeout time.Duration) *HTTPCollector {
	return &HTTPCollector{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		now:     time.Now,
	}
}

// mempoolInfo mirrors the /api/mempool response shape.
type mempoolInfo struct {
	Count uint64 `json:"count"`
	VSize uint64 `json:"vsize"`
}

// feeEstimates mirrors the /api/v1/fees/recommended response shape.
type feeEstimates struct {
	FastestFee  uint64 `json:"fastestFee"`
	HourFee     uint64 `json:"hourFee"`
	EconomyFee  uint64 `json:"economyFee"`
	MinimumFee  uint64 `json:"minimumFee"`
	HalfHourFee uint64 `json:"halfHourFee"`
}

// Fetch implements the Collector interface.
func (c *HTTPCollector) Fetch() (*Snapshot, error) {
	var mempool mempoolInfo
	if err := c.getJSON(c.baseURL+"/api/mempool", &mempool); err != nil {
		return nil, err
	}

	var fees feeEstimates
	if err := c.getJSON(c.baseURL+"/api/v1/fees/recommended", &fees); err != nil {
		return nil, err
	}

	return &Snapshot{
		MempoolTxs:   mempool.Count,
		MempoolBytes: mempool.VSize,
		FeeFast:      fees.FastestFee,
		FeeHour:      fees.HourFee,
		FeeEcon:      fees.EconomyFee,
		SourceTag:    c.baseURL,
		CapturedAt:   c.now().Unix(),
	}, nil
}

func (c *HTTPCollector) getJSON(url string, out interface{}) error {
	resp, err := c.client.Get(url)
	if err != nil {
		return errors.Wrapf(err, "couldn't fetch %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSignalResponseSize))
	if err != nil {
		return errors.Wrapf(err, "couldn't read response from %s", url)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrapf(err, "couldn't decode response from %s", url)
	}
	return nil
}
