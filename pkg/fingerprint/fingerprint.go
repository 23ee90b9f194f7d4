// Package fingerprint derives a weak, hourly rotating device fingerprint from
// environment characteristics. It is a heuristic for session continuity, not
// an identifier: collisions and spoofing are expected.
package fingerprint

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"
)

// Length is the size of a generated fingerprint.
const Length = 64

const (
	separator    = "###"
	noAudio      = "no-audio"
	fragmentLen  = 8
	rotatingLen  = 16
	stablePrefix = Length - rotatingLen
)

var seeds = [...]uint32{
	2654435769, 2246822507, 3266489909, 668265263,
	374761393, 3550635116, 4251993797, 3042594569,
}

// Environment holds the signals a fingerprint is built from. Zero values are
// rendered the same way a browser renders missing navigator properties.
type Environment struct {
	UserAgent           string
	Language            string
	Languages           []string
	ScreenWidth         int
	ScreenHeight        int
	AvailWidth          int
	AvailHeight         int
	ColorDepth          int
	PixelDepth          int
	TimezoneOffset      int // minutes, positive west of UTC
	Timezone            string
	Platform            string
	CookieEnabled       bool
	DoNotTrack          string
	MaxTouchPoints      int
	HardwareConcurrency int
	DevicePixelRatio    float64
	// AudioSignature is empty when no audio stack is available.
	AudioSignature  string
	CanvasSignature string
}

// Result is a generated fingerprint.
type Result struct {
	// Value is the 64-character fingerprint: the first 48 characters of
	// Stable followed by Rotating.
	Value    string
	Stable   string
	Rotating string
	Hour     int64
}

// Generate derives the fingerprint of env for the Unix hour containing now.
func Generate(env Environment, now time.Time) Result {
	raw := env.Raw()
	hour := now.Unix() / 3600
	stable := stableID(raw)
	rotating := stableID(raw + strconv.FormatInt(hour, 10))[:rotatingLen]
	return Result{
		Value:    stable[:stablePrefix] + rotating,
		Stable:   stable,
		Rotating: rotating,
		Hour:     hour,
	}
}

// Raw joins the environment signals into the string that gets hashed.
func (e Environment) Raw() string {
	dpr := e.DevicePixelRatio
	if dpr == 0 {
		dpr = 1
	}
	audio := e.AudioSignature
	if audio == "" {
		audio = noAudio
	}
	return strings.Join([]string{
		e.UserAgent,
		e.Language,
		languagesJSON(e.Languages),
		strconv.Itoa(e.ScreenWidth),
		strconv.Itoa(e.ScreenHeight),
		strconv.Itoa(e.AvailWidth),
		strconv.Itoa(e.AvailHeight),
		strconv.Itoa(e.ColorDepth),
		strconv.Itoa(e.PixelDepth),
		strconv.Itoa(e.TimezoneOffset),
		e.Timezone,
		e.Platform,
		strconv.FormatBool(e.CookieEnabled),
		e.DoNotTrack,
		strconv.Itoa(e.MaxTouchPoints),
		strconv.Itoa(e.HardwareConcurrency),
		strconv.FormatFloat(dpr, 'f', -1, 64),
		audio,
		e.CanvasSignature,
	}, separator)
}

func languagesJSON(langs []string) string {
	if langs == nil {
		langs = []string{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(langs); err != nil {
		return "[]"
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

type hashFunc func(units []uint16, seed uint32) int64

var hashes = [...]hashFunc{shiftAdd, fnvMul, sdbm, oneAtATime}

// stableID concatenates eight 8-character base36 fragments, cycling through
// the four hash functions with a different seed each round.
func stableID(raw string) string {
	var b strings.Builder
	b.Grow(len(seeds) * fragmentLen)
	for i, seed := range seeds {
		units := utf16.Encode([]rune(raw + strconv.Itoa(i)))
		h := hashes[i%len(hashes)](units, seed)
		frag := formatBase36(abs(h))
		if len(frag) < fragmentLen {
			frag = strings.Repeat("0", fragmentLen-len(frag)) + frag
		}
		b.WriteString(frag[len(frag)-fragmentLen:])
	}
	return b.String()
}

// The hash functions below operate on 32-bit two's complement integers held
// in int64, so that the first round can still see the full unsigned seed.

func toInt32(v int64) int64 { return int64(int32(uint32(v))) }

func shl(v int64, n uint) int64 { return int64(int32(uint32(v) << n)) }

func ushr(v int64, n uint) int64 { return int64(uint32(v) >> n) }

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func shiftAdd(units []uint16, seed uint32) int64 {
	a := int64(seed)
	for _, c := range units {
		a = toInt32(shl(a, 5) + a + int64(c))
	}
	return a
}

func fnvMul(units []uint16, seed uint32) int64 {
	a := int64(seed)
	for _, c := range units {
		a = toInt32(a) ^ int64(c)
		// The product exceeds 2^53 and must round like a float64.
		p := float64(a) * 16777619
		a = toInt32(int64(math.Trunc(p)))
	}
	return a
}

func sdbm(units []uint16, seed uint32) int64 {
	a := int64(seed)
	for _, c := range units {
		a = toInt32(int64(c) + shl(a, 6) + shl(a, 16) - a)
	}
	return a
}

func oneAtATime(units []uint16, seed uint32) int64 {
	a := int64(seed)
	for _, c := range units {
		a = toInt32(a + int64(c))
		a = toInt32(a + shl(a, 10))
		a = toInt32(a ^ ushr(a, 6))
	}
	a = toInt32(a + shl(a, 3))
	a = toInt32(a ^ ushr(a, 11))
	a = toInt32(a + shl(a, 15))
	return a
}

func formatBase36(v int64) string { return strconv.FormatInt(v, 36) }
