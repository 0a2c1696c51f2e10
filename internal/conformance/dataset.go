package conformance

import (
	"time"

	"github.com/roach88/revstore/internal/ir"
	"github.com/roach88/revstore/internal/resource"
)

var epoch = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

// Dataset returns the metas the built-in cases run against. Every call
// returns fresh copies.
func Dataset() []*resource.ResourceMeta {
	rows := []struct {
		id      string
		by      string
		version string
		deleted bool
		data    ir.IRObject
	}{
		{"c01", "alice", "v1", false, ir.IRObject{
			"name":  ir.IRString("Deep Forest"),
			"level": ir.IRInt(5),
			"score": ir.IRFloat(1.5),
			"tags":  ir.IRArray{ir.IRString("green"), ir.IRString("wet")},
			"guild": ir.IRNull{},
			"flag":  ir.IRBool(true),
		}},
		{"c02", "alice", "v2", false, ir.IRObject{
			"name":  ir.IRString("Forest"),
			"level": ir.IRInt(10),
			"score": ir.IRFloat(3),
			"tags":  ir.IRArray{},
			"guild": ir.IRString("g1"),
			"flag":  ir.IRBool(false),
		}},
		{"c03", "bob", "v2", false, ir.IRObject{
			"name":  ir.IRString("\u00c4rger"),
			"level": ir.IRFloat(5),
			"code":  ir.IRString("10"),
		}},
		{"c04", "bob", "", false, ir.IRObject{
			"name":  ir.IRString("cave"),
			"level": ir.IRString("high"),
			"tags":  ir.IRArray{ir.IRString("dark"), ir.IRInt(1)},
			"attrs": ir.IRObject{"a": ir.IRInt(1), "b": ir.IRInt(2)},
			"guild": ir.IRString("g2"),
		}},
		{"c05", "carol", "v1", false, ir.IRObject{
			"name":  ir.IRString(""),
			"level": ir.IRInt(-3),
			"score": ir.IRFloat(-0.25),
			"tags":  ir.IRArray{ir.IRString("green")},
			"code":  ir.IRInt(10),
			"flag":  ir.IRBool(true),
		}},
		{"c06", "alice", "v1", true, ir.IRObject{
			"name":  ir.IRString("Deep Sea"),
			"level": ir.IRInt(7),
			"guild": ir.IRString("g1"),
		}},
		{"c07", "carol", "v3", false, ir.IRObject{
			"name":  ir.IRString("50% off_sale"),
			"level": ir.IRInt(10),
			"score": ir.IRFloat(2.75),
			"tags":  ir.IRArray{ir.IRString("wet"), ir.IRNull{}},
			"guild": ir.IRNull{},
		}},
		{"c08", "dave", "v2", false, ir.IRObject{
			"name":  ir.IRString("forest path"),
			"level": ir.IRBool(true),
			"attrs": ir.IRObject{},
			"flag":  ir.IRNull{},
		}},
		// Integers beyond 2^53 are not exactly representable as float64.
		{"c09", "erin", "v3", false, ir.IRObject{
			"name": ir.IRString("Giant"),
			"big":  ir.IRInt(9007199254740993),
		}},
		{"c10", "erin", "v3", false, ir.IRObject{
			"name": ir.IRString("Colossus"),
			"big":  ir.IRInt(9007199254740992),
		}},
	}

	out := make([]*resource.ResourceMeta, len(rows))
	for i, r := range rows {
		created := epoch.Add(time.Duration(i) * time.Hour)
		out[i] = &resource.ResourceMeta{
			ResourceID:         r.id,
			CurrentRevisionID:  r.id + "-rev",
			SchemaVersion:      r.version,
			TotalRevisionCount: i%3 + 1,
			CreatedTime:        created,
			CreatedBy:          r.by,
			UpdatedTime:        created.Add(30 * time.Minute),
			UpdatedBy:          r.by,
			IsDeleted:          r.deleted,
			IndexedData:        r.data,
		}
	}
	return out
}
