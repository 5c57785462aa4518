package ddns

import (
	"bytes"
	"cfsync/common"
	"cfsync/config"
	"cfsync/log"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	cfapi "github.com/cloudflare/cloudflare-go"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

const maxReadResponse = 64 * 1024

type cloudflare struct {
	token    string
	zoneName string
	baseURL  string
	ttl      int
	proxied  bool

	mu     sync.Mutex
	zoneID string
}

type logger struct {
	ctx context.Context
}

func (l *logger) Printf(format string, v ...interface{}) {
	log.S(l.ctx).Debugf(format, v...)
}

type upsertBody struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
	TTL     int    `json:"ttl"`
	Proxied bool   `json:"proxied"`
}

func (d *cloudflare) getAPI(ctx context.Context) (*cfapi.API, error) {
	api, err := cfapi.NewWithAPIToken(d.token,
		cfapi.HTTPClient(common.HTTPClient(ctx)),
		cfapi.BaseURL(d.baseURL),
		cfapi.UsingLogger(&logger{ctx: ctx}))
	if err != nil {
		log.S(ctx).Errorw("failed create cloudflare API", zap.Error(err))
		return nil, fmt.Errorf("failed create cloudflare API: %w", err)
	}

	return api, nil
}

func (d *cloudflare) FindRecord(ctx context.Context, name string) (records []Record, err error) {
	ctx = log.SWith(ctx,
		"action", "find",
		"domain", name)

	api, err := d.getAPI(ctx)
	if err != nil {
		return nil, err
	}

	params := cfapi.ListDNSRecordsParams{
		Type: RecordTypeA,
		Name: name,
	}

	zoneID, err := d.zone(ctx, api)
	if err != nil {
		return nil, err
	}

	cfRecords, info, err := api.ListDNSRecords(ctx, cfapi.ZoneIdentifier(zoneID), params)
	if err != nil {
		log.S(ctx).Warnw("failed list records", zap.Error(err))
		return nil, fmt.Errorf("failed list records: %w", err)
	}

	if info != nil && info.HasMorePages() {
		log.S(ctx).Warnw("partial result, ignore remaining", "count", len(cfRecords), "total", info.Count, "pages", info.TotalPages)
	}

	for _, record := range cfRecords {
		r := Record{
			ID:      record.ID,
			Name:    record.Name,
			Type:    record.Type,
			Content: record.Content,
			TTL:     record.TTL,
		}
		if record.Proxied != nil {
			r.Proxied = *record.Proxied
		}
		records = append(records, r)
	}

	log.S(ctx).Debugw("find records", "records", records)

	return records, nil
}

// zone returns the zone id, looking it up by name on first use. A failed
// lookup is not cached so the next cycle tries again.
func (d *cloudflare) zone(ctx context.Context, api *cfapi.API) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.zoneID != "" {
		return d.zoneID, nil
	}

	if api == nil {
		var err error
		if api, err = d.getAPI(ctx); err != nil {
			return "", err
		}
	}

	id, err := api.ZoneIDByName(d.zoneName)
	if err != nil {
		log.S(ctx).Errorw("failed get zone id", "zone", d.zoneName, zap.Error(err))
		return "", fmt.Errorf("failed get zone id: %w", err)
	}

	log.S(ctx).Infow("resolved zone", "zone", d.zoneName, "zone_id", id)
	d.zoneID = id
	return id, nil
}

func (d *cloudflare) recordURL(zoneID, id string) string {
	return fmt.Sprintf("%s/zones/%s/dns_records/%s", d.baseURL, url.PathEscape(zoneID), url.PathEscape(id))
}

func (d *cloudflare) UpsertRecord(ctx context.Context, r Record) Result {
	ctx = log.SWith(ctx,
		"type", "cloudflare",
		"action", "upsert",
		log.Record(r.ID, r.Name),
		"address", r.Content)

	zoneID, err := d.zone(ctx, nil)
	if err != nil {
		return Result{Status: common.StatusError, Err: &TransportError{Err: err}}
	}

	payload, err := json.Marshal(upsertBody{
		Type:    r.Type,
		Name:    r.Name,
		Content: r.Content,
		TTL:     d.ttl,
		Proxied: d.proxied,
	})
	if err != nil {
		log.S(ctx).Errorw("failed encode request", zap.Error(err), log.Internal)
		return Result{Status: common.StatusError, Err: &TransportError{Err: err}}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, d.recordURL(zoneID, r.ID), bytes.NewReader(payload))
	if err != nil {
		log.S(ctx).Errorw("new request failed", zap.Error(err))
		return Result{Status: common.StatusError, Err: &TransportError{Err: err}}
	}
	req.Header.Set("Authorization", "Bearer "+d.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := common.HTTPClient(ctx).Do(req)
	if err != nil {
		log.S(ctx).Warnw("update request failed", zap.Error(err))
		return Result{Status: common.StatusError, Err: &TransportError{Err: err}}
	}

	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			log.S(ctx).Warnw("close body failed", zap.Error(err))
		}
	}(resp.Body)

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReadResponse))
	if err != nil {
		log.S(ctx).Warnw("receiving response failed", zap.Error(err))
		return Result{Status: common.StatusError, StatusCode: resp.StatusCode, Err: &TransportError{Err: err}}
	}

	result := Result{
		Status:     common.StatusFail,
		StatusCode: resp.StatusCode,
		Body:       ParseBody(data),
	}

	if resp.StatusCode == http.StatusOK {
		result.Status = common.StatusSuccess
		log.S(ctx).Infow("record updated", "status", resp.StatusCode)
	} else {
		log.S(ctx).Warnw("provider rejected update", "status", resp.StatusCode, log.ByteField("body", data))
	}

	return result
}

// New creates the Cloudflare provider. When only a zone name is configured
// it is resolved to an id on the first request, not here.
func New(ctx context.Context, provider config.CloudflareConfig) (_ Interface, err error) {
	c := provider
	if c.ZoneID == "" && c.ZoneName == "" {
		log.S(ctx).Errorw("no zone configured", "type", "cloudflare")
		return nil, fmt.Errorf("cloudflare: zone id or zone name required")
	}

	d := &cloudflare{
		token:    c.APIToken,
		zoneName: c.ZoneName,
		zoneID:   c.ZoneID,
		baseURL:  strings.TrimSuffix(c.BaseURL, "/"),
		ttl:      c.TTL,
		proxied:  c.Proxied,
	}

	if d.baseURL == "" {
		d.baseURL = config.DefaultBaseURL
	}
	if d.ttl == 0 {
		d.ttl = config.AutoTTL
	}

	return d, nil
}
