package services

import (
	"strings"

	"github.com/samber/lo"
	"github.com/tidwall/gjson"
)

// SpatialSupport is the result of classifying a catalog track. HasAtmos always implies HasSpatial.
type SpatialSupport struct {
	HasSpatial bool
	HasAtmos   bool
	Variants   []string // audio variant and trait tags as reported by the catalog
}

var (
	atmosMarkers   = []string{"atmos", "dolby"}
	spatialMarkers = []string{"spatial"}
)

// NormalizeVariants flattens a variant or trait field to its tags.
//
// Lists yield their string elements, objects yield string values and the keys of true values,
// and a scalar string yields itself. Anything else yields an empty list.
func NormalizeVariants(v gjson.Result) []string {
	tags := []string{}
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			tags = append(tags, s)
		}
	}

	switch {
	case v.IsArray():
		for _, e := range v.Array() {
			if e.Type == gjson.String || e.Type == gjson.Number {
				add(e.String())
			}
		}
	case v.IsObject():
		v.ForEach(func(key, value gjson.Result) bool {
			switch value.Type {
			case gjson.String:
				add(value.String())
			case gjson.True:
				add(key.String())
			}
			return true
		})
	case v.Type == gjson.String:
		add(v.String())
	}

	return tags
}

// ClassifySpatialSupport reads attributes.audioVariants first and falls back to attributes.audioTraits.
//
// A variant mentioning atmos or dolby marks the track as Atmos. The trait fallback marks
// Atmos for atmos traits and plain spatial for spatial traits. A bare "spatial" trait does
// not say which immersive format the track carries, so it is stored as Spatial Audio rather
// than Dolby Atmos even though older clients treated both traits as Atmos.
func ClassifySpatialSupport(raw RawTrack) SpatialSupport {
	variants := NormalizeVariants(raw.Get("attributes.audioVariants"))
	traits := NormalizeVariants(raw.Get("attributes.audioTraits"))

	var s SpatialSupport
	if containsAny(variants, atmosMarkers) {
		s.HasAtmos = true
	}

	if !s.HasAtmos {
		switch {
		case containsAny(traits, atmosMarkers[:1]):
			s.HasAtmos = true
		case containsAny(traits, spatialMarkers):
			s.HasSpatial = true
		}
	}

	s.HasSpatial = s.HasSpatial || s.HasAtmos
	s.Variants = lo.Uniq(append(variants, traits...))
	return s
}

func containsAny(tags, markers []string) bool {
	return lo.SomeBy(tags, func(tag string) bool {
		tag = strings.ToLower(tag)
		return lo.SomeBy(markers, func(m string) bool { return strings.Contains(tag, m) })
	})
}
