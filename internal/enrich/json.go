package enrich

import (
	"fmt"
	"strings"

	"github.com/valyala/fastjson"
)

var jsonParsers fastjson.ParserPool

// LoadAssetsJSON accepts either an array of asset objects or an object keyed
// by asset ID. In the keyed form the key is used when asset_id is absent.
func (e *Enricher) LoadAssetsJSON(data []byte) error {
	p := jsonParsers.Get()
	defer jsonParsers.Put(p)

	v, err := p.ParseBytes(data)
	if err != nil {
		return fmt.Errorf("parse asset json: %w", err)
	}

	switch v.Type() {
	case fastjson.TypeArray:
		arr, _ := v.Array()
		for _, item := range arr {
			if item.Type() != fastjson.TypeObject {
				continue
			}
			if rec := recordFrom(item, ""); rec.AssetID != "" {
				e.AddAsset(rec)
			}
		}
	case fastjson.TypeObject:
		obj, _ := v.Object()
		obj.Visit(func(key []byte, item *fastjson.Value) {
			if item.Type() != fastjson.TypeObject {
				return
			}
			if rec := recordFrom(item, string(key)); rec.AssetID != "" {
				e.AddAsset(rec)
			}
		})
	default:
		return fmt.Errorf("asset json must be an array or object, got %s", v.Type())
	}
	return nil
}

func recordFrom(v *fastjson.Value, key string) Record {
	rec := Record{
		AssetID:         field(v, "asset_id"),
		AssetType:       field(v, "asset_type"),
		Make:            field(v, "make"),
		Model:           field(v, "model"),
		Serial:          field(v, "serial"),
		IP:              field(v, "ip"),
		MAC:             field(v, "mac"),
		Hostname:        field(v, "hostname"),
		Room:            field(v, "room"),
		Building:        field(v, "building"),
		Floor:           field(v, "floor"),
		Site:            field(v, "site"),
		FirmwareVersion: field(v, "firmware_version"),
	}
	if rec.AssetID == "" {
		rec.AssetID = key
	}
	return rec
}

// field returns a member as text. Numbers and booleans keep their JSON
// spelling; null and missing members are empty.
func field(v *fastjson.Value, key string) string {
	f := v.Get(key)
	if f == nil {
		return ""
	}
	switch f.Type() {
	case fastjson.TypeString:
		return strings.TrimSpace(string(f.GetStringBytes()))
	case fastjson.TypeNull, fastjson.TypeObject, fastjson.TypeArray:
		return ""
	}
	return f.String()
}
