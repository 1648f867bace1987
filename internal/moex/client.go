package moex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"bondwatch/internal/config"
	"bondwatch/internal/errors"
	"bondwatch/internal/logging"
	"bondwatch/internal/models"
	"bondwatch/pkg/utils"
)

// maxCouponPages bounds the pagination fallback walk.
const maxCouponPages = 50

// Client talks to the MOEX ISS API over plain HTTP.
type Client struct {
	baseURL   string
	pageLimit int
	client    *http.Client
	logger    zerolog.Logger
	retry     utils.RetryConfig

	// now is injectable for tests.
	now func() time.Time
}

// NewClient creates a new market-data client.
func NewClient(cfg config.MOEXConfig, logger zerolog.Logger) *Client {
	return &Client{
		baseURL:   cfg.BaseURL,
		pageLimit: cfg.CouponPageLimit,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
		retry:  utils.DefaultRetryConfig(),
		now:    time.Now,
	}
}

// BondEvents fetches the bondization payload for an instrument and
// normalizes it into the canonical event record. Any network or parse
// failure for the whole payload is recovered into an empty record: the
// instrument stays stale and the next scheduled run retries.
func (c *Client) BondEvents(ctx context.Context, isin string) (models.BondEvents, error) {
	log := logging.WithISIN(c.logger, isin)

	raw, err := c.get(ctx, fmt.Sprintf("/iss/securities/%s/bondization.json", isin))
	if err != nil {
		log.Warn().Err(err).Msg("Bondization fetch failed, returning empty record")
		return models.BondEvents{ISIN: isin}, nil
	}

	doc, err := ParseDocument(raw)
	if err != nil {
		log.Warn().Err(err).Msg("Bondization payload unparseable, returning empty record")
		return models.BondEvents{ISIN: isin}, nil
	}

	events := Normalize(isin, doc)
	log.Debug().
		Int("coupons", len(events.Coupons)).
		Int("amortizations", len(events.Amortizations)).
		Int("offers", len(events.Offers)).
		Msg("Bondization payload normalized")

	// The first page sometimes carries only historical coupons. Walk
	// further pages until a short page signals the end.
	today := models.DateOnly(c.now())
	if len(events.Coupons) > 0 && !hasFutureCoupon(events, today) {
		c.fetchRemainingCoupons(ctx, isin, &events, log)
	}

	return events, nil
}

// fetchRemainingCoupons pages through the coupon table merging newly
// discovered coupons by date, first occurrence winning on conflict.
func (c *Client) fetchRemainingCoupons(ctx context.Context, isin string, events *models.BondEvents, log zerolog.Logger) {
	start := c.pageLimit
	for page := 1; page <= maxCouponPages; page++ {
		path := fmt.Sprintf("/iss/securities/%s/bondization.json?start=%d&limit=%d", isin, start, c.pageLimit)

		raw, err := utils.RetryWithResult(ctx, c.retry, func() ([]byte, error) {
			return c.get(ctx, path)
		})
		if err != nil {
			log.Warn().Err(err).Int("start", start).Msg("Coupon page fetch failed, stopping pagination")
			return
		}

		doc, err := ParseDocument(raw)
		if err != nil {
			log.Warn().Err(err).Int("start", start).Msg("Coupon page unparseable, stopping pagination")
			return
		}

		pageEvents := Normalize(isin, doc)
		mergeCoupons(events, pageEvents.Coupons)

		if doc.Coupons.Len() < c.pageLimit {
			return
		}
		start += c.pageLimit
	}
}

// SecurityName looks up the display name of a security, or returns an
// empty string when the card has none.
func (c *Client) SecurityName(ctx context.Context, isin string) (string, error) {
	raw, err := c.get(ctx, fmt.Sprintf("/iss/securities/%s.json", isin))
	if err != nil {
		return "", err
	}

	var card struct {
		Description json.RawMessage `json:"description"`
		Securities  json.RawMessage `json:"securities"`
	}
	if err := json.Unmarshal(raw, &card); err != nil {
		return "", errors.NewFetchError(isin, "security card", err)
	}

	// The description block lists attribute rows; the NAME row holds the
	// display name in its value column.
	if desc, err := classifySection(card.Description); err == nil {
		for _, rec := range desc.Records {
			if fieldString(rec, "name") == "NAME" {
				if v := fieldString(rec, "value"); v != "" {
					return v, nil
				}
			}
		}
	}

	if sec, err := classifySection(card.Securities); err == nil && sec.Len() > 0 {
		for _, key := range []string{"SECNAME", "secname", "shortname", "SHORTNAME"} {
			if v := fieldString(sec.Records[0], key); v != "" {
				return v, nil
			}
		}
	}

	return "", nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	url := c.baseURL + path
	started := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.NewFetchError("", path, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	logging.LogAPICall(c.logger, http.MethodGet, path, time.Since(started), err)
	if err != nil {
		return nil, errors.NewFetchError("", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewFetchError("", path, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewFetchError("", path, err)
	}
	return body, nil
}
