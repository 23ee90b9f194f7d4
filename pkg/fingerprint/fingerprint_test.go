package fingerprint

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEnvironment() Environment {
	return Environment{
		UserAgent:           "Mozilla/5.0 (X11; Linux x86_64)",
		Language:            "en-US",
		Languages:           []string{"en-US", "en"},
		ScreenWidth:         1920,
		ScreenHeight:        1080,
		AvailWidth:          1920,
		AvailHeight:         1050,
		ColorDepth:          24,
		PixelDepth:          24,
		TimezoneOffset:      -60,
		Timezone:            "Europe/Berlin",
		Platform:            "Linux x86_64",
		CookieEnabled:       true,
		HardwareConcurrency: 8,
		DevicePixelRatio:    1.5,
	}
}

func TestRaw(t *testing.T) {
	assert.Equal(t,
		`Mozilla/5.0 (X11; Linux x86_64)###en-US###["en-US","en"]###1920###1080###1920###1050###24###24###-60###Europe/Berlin###Linux x86_64###true######0###8###1.5###no-audio###`,
		testEnvironment().Raw())
}

func TestRawDefaults(t *testing.T) {
	raw := Environment{}.Raw()
	assert.Equal(t, "######[]###0###0###0###0###0###0###0#########false######0###0###1###no-audio###", raw)
}

func TestStableID(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "ascii", raw: "abc", want: "00ykh4gf00djaujo00p8aflx004cc11200ozry9h00a0om6g00jfkxll00hkstrv"},
		{name: "utf16 surrogates", raw: "🌍 é", want: "00ejrrc500ctr39800nv1db7004uadep008r2a5300m36yym00g5i593007wc8ds"},
		{name: "empty", raw: "", want: "00s2dc7d00c9cx4g00st1c5f00ikmwj1008k9qez00z2641000p4z6tr00e7xanj"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := stableID(tt.raw)
			assert.Equal(t, tt.want, got)
			assert.Len(t, got, Length)
		})
	}
}

func TestHashFunctions(t *testing.T) {
	units := []uint16{'h', 'e', 'l', 'l', 'o', ' ', 'w', 'o', 'r', 'l', 'd'}
	want := []string{"qze1or", "tnqeoo", "nkema7", "h38fps"}
	for i, h := range hashes {
		got := h(units, seeds[i])
		assert.Equal(t, want[i], formatBase36(abs(got)), "hash %d", i)
	}
}

func TestGenerate(t *testing.T) {
	now := time.Unix(1700000000, 0)
	res := Generate(testEnvironment(), now)

	assert.Equal(t, int64(472222), res.Hour)
	assert.Equal(t, "00ytys7l00t2ver0006bp02500kmg28z00ad8wnh000jbcws00xkr9jb000fzgm9", res.Stable)
	assert.Equal(t, "00mytvdw007shufw", res.Rotating)
	assert.Equal(t, "00ytys7l00t2ver0006bp02500kmg28z00ad8wnh000jbcws00mytvdw007shufw", res.Value)
	assert.Len(t, res.Value, Length)
}

func TestGenerateRotatesHourly(t *testing.T) {
	env := testEnvironment()
	base := time.Unix(472222*3600, 0)

	first := Generate(env, base)
	sameHour := Generate(env, base.Add(59*time.Minute))
	nextHour := Generate(env, base.Add(time.Hour))

	assert.Equal(t, first.Value, sameHour.Value)
	assert.Equal(t, first.Stable, nextHour.Stable)
	assert.NotEqual(t, first.Rotating, nextHour.Rotating)
}

func TestGenerateDistinguishesEnvironments(t *testing.T) {
	now := time.Unix(1700000000, 0)
	a := testEnvironment()
	b := testEnvironment()
	b.ScreenWidth = 1280

	assert.NotEqual(t, Generate(a, now).Stable, Generate(b, now).Stable)
}

func TestHost(t *testing.T) {
	t.Setenv("LC_ALL", "")
	t.Setenv("LANG", "de_DE.UTF-8")
	env := Host("tms-widget/test")
	require.Equal(t, "de-DE", env.Language)
	assert.Equal(t, []string{"de-DE"}, env.Languages)
	assert.Equal(t, "tms-widget/test", env.UserAgent)
	assert.Len(t, Generate(env, time.Now()).Value, Length)
}
