// internal/infra/aladhan/client.go
package aladhan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"ramadan_companion_bot/internal/domain/calendar"
	"ramadan_companion_bot/internal/domain/prayer"
)

const (
	dateLayout   = "02-01-2006" // DD-MM-YYYY as the API expects
	maxBodyBytes = 1 << 20
)

// Client talks to the Aladhan prayer times API. It serves both the lunar
// date lookup and the daily timings.
type Client struct {
	httpClient *http.Client
	baseURL    string
	method     int
	maxTries   uint
	newBackOff func() backoff.BackOff
	logger     *logrus.Entry
}

func NewClient(baseURL string, method int, timeout time.Duration, maxRetries uint, logger *logrus.Entry) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		method:     method,
		maxTries:   maxRetries + 1,
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
		logger:     logger,
	}
}

// LookupLunarDate converts date into the hijri calendar.
func (c *Client) LookupLunarDate(ctx context.Context, date time.Time) (calendar.LunarDate, error) {
	data, err := c.get(ctx, "/gToH", url.Values{"date": {date.Format(dateLayout)}})
	if err != nil {
		return calendar.LunarDate{}, err
	}
	return parseLunar(data.Get("hijri"))
}

// FetchTimings loads the prayer times of loc on date.
func (c *Client) FetchTimings(ctx context.Context, loc prayer.Location, date time.Time) (*prayer.DayTimings, error) {
	query := url.Values{
		"city":    {loc.City},
		"country": {loc.Country},
		"method":  {fmt.Sprint(c.method)},
		"date":    {date.Format(dateLayout)},
	}
	data, err := c.get(ctx, "/timingsByCity", query)
	if err != nil {
		return nil, err
	}

	timings := &prayer.DayTimings{
		Location: loc,
		Date:     calendar.StartOfDay(date),
		Times:    make(map[prayer.Name]prayer.TimeOfDay, len(prayer.Names)),
		Zone:     date.Location(),
	}
	for _, name := range prayer.Names {
		raw := data.Get("timings." + string(name))
		if !raw.Exists() {
			return nil, fmt.Errorf("%w: %s time missing for %s", prayer.ErrParse, name, loc)
		}
		tod, err := prayer.ParseTimeOfDay(raw.String())
		if err != nil {
			return nil, fmt.Errorf("%s for %s: %w", name, loc, err)
		}
		timings.Times[name] = tod
	}

	if hijri := data.Get("date.hijri"); hijri.Exists() {
		if lunar, err := parseLunar(hijri); err == nil {
			timings.Lunar = lunar
		}
	}

	if tz := data.Get("meta.timezone").String(); tz != "" {
		zone, err := time.LoadLocation(tz)
		if err != nil {
			c.logger.WithError(err).WithField("timezone", tz).Warn("Unknown timezone in response, keeping local zone")
		} else {
			timings.Zone = zone
		}
	}
	return timings, nil
}

func parseLunar(hijri gjson.Result) (calendar.LunarDate, error) {
	day := hijri.Get("day")
	month := hijri.Get("month.number")
	if !day.Exists() || !month.Exists() {
		return calendar.LunarDate{}, fmt.Errorf("%w: hijri date incomplete", prayer.ErrParse)
	}
	d := calendar.LunarDate{
		Day:   int(day.Int()),
		Month: int(month.Int()),
		Year:  int(hijri.Get("year").Int()),
	}
	if d.Day < 1 || d.Day > 30 || d.Month < 1 || d.Month > 12 {
		return calendar.LunarDate{}, fmt.Errorf("%w: hijri date %d/%d out of range", prayer.ErrParse, d.Day, d.Month)
	}
	return d, nil
}

// get performs a GET with retries and returns the "data" object of the envelope.
func (c *Client) get(ctx context.Context, path string, query url.Values) (gjson.Result, error) {
	endpoint := c.baseURL + path + "?" + query.Encode()
	log := c.logger.WithFields(logrus.Fields{
		"request_id": uuid.NewString(),
		"path":       path,
	})

	attempt := 0
	body, err := backoff.Retry(ctx, func() ([]byte, error) {
		attempt++
		return c.do(ctx, endpoint)
	},
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(c.maxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.WithError(err).WithField("retry_in", next).Warn("Request failed, retrying")
		}),
	)
	if err != nil {
		log.WithError(err).WithField("attempts", attempt).Error("Request failed")
		if errors.Is(err, prayer.ErrParse) || errors.Is(err, prayer.ErrNetwork) {
			return gjson.Result{}, err
		}
		return gjson.Result{}, fmt.Errorf("%w: %w", prayer.ErrNetwork, err)
	}

	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("%w: response is not JSON", prayer.ErrParse)
	}
	root := gjson.ParseBytes(body)
	if code := root.Get("code"); code.Exists() && code.Int() != http.StatusOK {
		return gjson.Result{}, fmt.Errorf("%w: api code %d: %s", prayer.ErrParse, code.Int(), root.Get("status").String())
	}
	data := root.Get("data")
	if !data.IsObject() {
		return gjson.Result{}, fmt.Errorf("%w: data object missing", prayer.ErrParse)
	}
	log.WithField("attempts", attempt).Debug("Request succeeded")
	return data, nil
}

// do runs one attempt. Client errors are permanent, server errors and
// transport failures are retried.
func (c *Client) do(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", prayer.ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", prayer.ErrNetwork, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", prayer.ErrNetwork, resp.StatusCode)
	case resp.StatusCode >= 400:
		// Unknown cities come back as 400 with an explanation in "data".
		return nil, backoff.Permanent(fmt.Errorf("%w: status %d: %s", prayer.ErrNetwork, resp.StatusCode, gjson.GetBytes(body, "data").String()))
	}
	return body, nil
}
