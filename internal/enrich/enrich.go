// Package enrich fills missing asset and location fields on events from an
// asset inventory and an IP to room map. Lookups are exact table lookups;
// nothing is inferred.
package enrich

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/crimson-sun/avrca/internal/model"
)

// ErrUnsupportedFormat is returned for asset files that are neither CSV nor
// JSON.
var ErrUnsupportedFormat = errors.New("unsupported asset database format")

var (
	// enrichTotal counts Enrich calls by how the event was matched
	enrichTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "avrca_enrich_events_total",
		Help: "Events passed through enrichment by outcome",
	}, []string{"outcome"})
)

// Record is one inventory entry.
type Record struct {
	AssetID         string `json:"asset_id"`
	AssetType       string `json:"asset_type,omitempty"`
	Make            string `json:"make,omitempty"`
	Model           string `json:"model,omitempty"`
	Serial          string `json:"serial,omitempty"`
	IP              string `json:"ip,omitempty"`
	MAC             string `json:"mac,omitempty"`
	Hostname        string `json:"hostname,omitempty"`
	Room            string `json:"room,omitempty"`
	Building        string `json:"building,omitempty"`
	Floor           string `json:"floor,omitempty"`
	Site            string `json:"site,omitempty"`
	FirmwareVersion string `json:"firmware_version,omitempty"`
}

// Stats summarizes what is loaded.
type Stats struct {
	TotalAssets      int `json:"total_assets"`
	IPMappings       int `json:"ip_mappings"`
	HostnameMappings int `json:"hostname_mappings"`
}

// Enricher is safe for concurrent use.
type Enricher struct {
	mu     sync.RWMutex
	byID   map[string]*Record
	byIP   map[string]*Record
	byHost map[string]*Record // lowercased hostname
	ipRoom map[string]string
}

// New returns an empty Enricher.
func New() *Enricher {
	return &Enricher{
		byID:   map[string]*Record{},
		byIP:   map[string]*Record{},
		byHost: map[string]*Record{},
		ipRoom: map[string]string{},
	}
}

// Load builds an Enricher from an optional asset database and an optional IP
// to room map. Empty paths are skipped.
func Load(assetPath, ipRoomPath string) (*Enricher, error) {
	e := New()
	if assetPath != "" {
		if err := e.LoadAssets(assetPath); err != nil {
			return nil, err
		}
	}
	if ipRoomPath != "" {
		if err := e.LoadIPRoomMap(ipRoomPath); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// LoadAssets reads a .csv or .json asset database.
func (e *Enricher) LoadAssets(path string) error {
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		var f *os.File
		if f, err = os.Open(path); err != nil {
			return fmt.Errorf("enrich: open assets: %w", err)
		}
		defer f.Close()
		err = e.LoadAssetsCSV(f)
	case ".json":
		var data []byte
		if data, err = os.ReadFile(path); err != nil {
			return fmt.Errorf("enrich: read assets: %w", err)
		}
		err = e.LoadAssetsJSON(data)
	default:
		return fmt.Errorf("enrich: %s: %w", path, ErrUnsupportedFormat)
	}
	if err != nil {
		return fmt.Errorf("enrich: %s: %w", path, err)
	}
	slog.Info("asset database loaded", "path", path, "assets", e.Stats().TotalAssets)
	return nil
}

// LoadAssetsCSV reads an asset table with a header row. Rows without
// asset_id are ignored.
func (e *Enricher) LoadAssetsCSV(r io.Reader) error {
	return readCSV(r, func(row map[string]string) {
		rec := Record{
			AssetID:         row["asset_id"],
			AssetType:       row["asset_type"],
			Make:            row["make"],
			Model:           row["model"],
			Serial:          row["serial"],
			IP:              row["ip"],
			MAC:             row["mac"],
			Hostname:        row["hostname"],
			Room:            row["room"],
			Building:        row["building"],
			Floor:           row["floor"],
			Site:            row["site"],
			FirmwareVersion: row["firmware_version"],
		}
		if rec.AssetID != "" {
			e.AddAsset(rec)
		}
	})
}

// LoadIPRoomMap reads an ip,room CSV file.
func (e *Enricher) LoadIPRoomMap(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("enrich: open ip map: %w", err)
	}
	defer f.Close()
	if err := e.LoadIPRoomCSV(f); err != nil {
		return fmt.Errorf("enrich: %s: %w", path, err)
	}
	slog.Info("ip room map loaded", "path", path, "mappings", e.Stats().IPMappings)
	return nil
}

// LoadIPRoomCSV reads ip,room rows. Rows missing either column are ignored.
func (e *Enricher) LoadIPRoomCSV(r io.Reader) error {
	return readCSV(r, func(row map[string]string) {
		ip, room := row["ip"], row["room"]
		if ip == "" || room == "" {
			return
		}
		e.mu.Lock()
		e.ipRoom[ip] = room
		e.mu.Unlock()
	})
}

func readCSV(r io.Reader, fn func(map[string]string)) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return err
	}
	for i, h := range header {
		header[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		row := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(rec) {
				row[h] = strings.TrimSpace(rec[i])
			}
		}
		fn(row)
	}
}

// AddAsset adds or replaces an asset and indexes it by IP and hostname.
func (e *Enricher) AddAsset(rec Record) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r := &rec
	if old, ok := e.byID[rec.AssetID]; ok {
		e.unindex(old)
	}
	e.byID[rec.AssetID] = r
	if rec.IP != "" {
		e.byIP[rec.IP] = r
	}
	if rec.Hostname != "" {
		e.byHost[strings.ToLower(rec.Hostname)] = r
	}
}

func (e *Enricher) unindex(old *Record) {
	if e.byIP[old.IP] == old {
		delete(e.byIP, old.IP)
	}
	if h := strings.ToLower(old.Hostname); e.byHost[h] == old {
		delete(e.byHost, h)
	}
}

// Lookup finds an asset by asset ID, IP or hostname, in that order.
func (e *Enricher) Lookup(identifier string) (Record, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if r := e.find(identifier, identifier, identifier); r != nil {
		return *r, true
	}
	return Record{}, false
}

func (e *Enricher) find(id, ip, host string) *Record {
	if r, ok := e.byID[id]; ok && id != "" {
		return r
	}
	if r, ok := e.byIP[ip]; ok && ip != "" {
		return r
	}
	if r, ok := e.byHost[strings.ToLower(host)]; ok && host != "" {
		return r
	}
	return nil
}

// Enrich returns a copy of ev with empty asset and location fields filled
// from the inventory, then the room filled from the IP map if still empty.
// Fields that are already set are never overwritten.
func (e *Enricher) Enrich(ev model.Event) model.Event {
	e.mu.RLock()
	defer e.mu.RUnlock()

	outcome := "unmatched"
	if ev.Asset != nil {
		if rec := e.find(ev.Asset.AssetID, ev.Asset.IP, ev.Asset.Hostname); rec != nil {
			a := *ev.Asset
			fill(&a.AssetType, rec.AssetType)
			fill(&a.Make, rec.Make)
			fill(&a.Model, rec.Model)
			fill(&a.Serial, rec.Serial)
			fill(&a.FirmwareVersion, rec.FirmwareVersion)
			fill(&a.AssetID, rec.AssetID)
			fill(&a.IP, rec.IP)
			fill(&a.MAC, rec.MAC)
			fill(&a.Hostname, rec.Hostname)
			ev.Asset = &a

			fill(&ev.Location.Room, rec.Room)
			fill(&ev.Location.Building, rec.Building)
			fill(&ev.Location.Floor, rec.Floor)
			fill(&ev.Location.Site, rec.Site)
			outcome = "asset"
		}
	}
	if ev.Location.Room == "" && ev.Asset != nil && ev.Asset.IP != "" {
		if room, ok := e.ipRoom[ev.Asset.IP]; ok {
			ev.Location.Room = room
			if outcome == "unmatched" {
				outcome = "ip_room"
			}
		}
	}
	enrichTotal.WithLabelValues(outcome).Inc()
	return ev
}

// EnrichAll enriches every event and returns the new slice.
func (e *Enricher) EnrichAll(events []model.Event) []model.Event {
	out := make([]model.Event, len(events))
	for i, ev := range events {
		out[i] = e.Enrich(ev)
	}
	return out
}

// RoomAssets returns the assets in room ordered by asset ID.
func (e *Enricher) RoomAssets(room string) []Record {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []Record
	for _, r := range e.byID {
		if r.Room == room {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssetID < out[j].AssetID })
	return out
}

// Stats reports the loaded table sizes.
func (e *Enricher) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Stats{
		TotalAssets:      len(e.byID),
		IPMappings:       len(e.ipRoom),
		HostnameMappings: len(e.byHost),
	}
}

func fill(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}
