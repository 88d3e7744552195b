package formats

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectScenario(t *testing.T) {
	t.Parallel()

	sel := Select([]Descriptor{
		{FormatID: "137", URL: "u", Ext: "mp4", VCodec: "avc1", Protocol: "https", Width: 1920, Height: 1080, FormatNote: "1080p HDR"},
		{FormatID: "248", URL: "u", Ext: "webm", VCodec: "vp9", Protocol: "m3u8_native", Width: 1920, Height: 1080},
		{FormatID: "22", URL: "u", Ext: "flv", VCodec: "avc1", Protocol: "https", Width: 1280, Height: 720, FormatNote: "720p 3D", Filesize: 5 << 20},
		{FormatID: "140", URL: "u", Ext: "m4a", VCodec: "none", ACodec: "mp4a"},
	})

	require.Len(t, sel.Video, 2)

	top := sel.Video[0]
	assert.Equal(t, "1080p", top.Label)
	assert.Equal(t, "137", top.Candidate.FormatID)
	assert.Equal(t, 180, top.Candidate.Score)
	assert.Equal(t, Chain{
		{Selector: "137"},
		{Selector: "best[height<=1080]"},
		{Selector: "best[height<=720]"},
		{Selector: "best"},
	}, top.Candidate.Chain)

	second := sel.Video[1]
	assert.Equal(t, "720p", second.Label)
	assert.Equal(t, 150, second.Candidate.Score)
	assert.Equal(t, int64(5<<20), second.Candidate.EstimatedSize)
	assert.Equal(t, "22/best[height<=720]/best", second.Candidate.Chain.String())

	assert.True(t, sel.Audio.AudioOnly)
	assert.Equal(t, Chain{
		{Selector: "bestaudio", ExtractAudio: true},
		{Selector: "best", ExtractAudio: true},
	}, sel.Audio.Candidate.Chain)

	tiers := sel.Tiers()
	require.Len(t, tiers, 3)
	assert.Equal(t, AudioTierID, tiers[2].ID())
}

func TestScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		d    Descriptor
		want int
	}{
		{"https mp4 hdr", Descriptor{Protocol: "https", Ext: "mp4", FormatNote: "HDR"}, 180},
		{"hls webm", Descriptor{Protocol: "m3u8_native", Ext: "webm"}, 90},
		{"dash segments", Descriptor{Protocol: "http_dash_segments", Ext: "mp4"}, 110},
		{"missing protocol counts as https", Descriptor{Ext: "mp4", FilesizeApprox: 10}, 210},
		{"untested", Descriptor{Protocol: "https", FormatNote: "Untested"}, 110},
		{"experimental", Descriptor{Protocol: "https", FormatNote: "experimental"}, 110},
		{"hdr dynamic range", Descriptor{Protocol: "https", DynamicRange: "HDR10"}, 130},
		{"sdr dynamic range", Descriptor{Protocol: "https", DynamicRange: "SDR"}, 140},
		{"rtmp", Descriptor{Protocol: "rtmp"}, 40},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Score(tt.d), tt.name)
	}
}

func TestQuality(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		d         Descriptor
		wantLabel string
		wantRank  int
	}{
		{"landscape", Descriptor{Width: 1920, Height: 1080}, "1080p", 1080},
		{"portrait uses width", Descriptor{Width: 720, Height: 1280}, "720p", 720},
		{"height only", Descriptor{Height: 480}, "480p", 480},
		{"resolution string", Descriptor{Resolution: "640x360"}, "360p", 360},
		{"portrait resolution", Descriptor{Resolution: "1080x1920"}, "1080p", 1080},
		{"bad resolution falls through", Descriptor{Resolution: "audio only", FormatNote: "240p"}, "240p", 240},
		{"note", Descriptor{FormatNote: "DASH video 144p"}, "144p", 144},
		{"known id", Descriptor{FormatID: "298"}, "720p60", 720},
		{"unknown", Descriptor{FormatID: "hls-fastly"}, "Format hls-fastly", 0},
	}
	for _, tt := range tests {
		label, rank := Quality(tt.d)
		assert.Equal(t, tt.wantLabel, label, tt.name)
		assert.Equal(t, tt.wantRank, rank, tt.name)
	}
}

func TestSelectFiltersUnusable(t *testing.T) {
	t.Parallel()

	sel := Select([]Descriptor{
		{FormatID: "sb0", URL: "u", VCodec: "none", Ext: "mhtml", FormatNote: "storyboard"},
		{FormatID: "a", URL: "u", VCodec: "", Height: 360},
		{FormatID: "b", URL: "", VCodec: "avc1", Height: 360},
		{FormatID: "c", URL: "u", VCodec: "avc1", Ext: "jpg", Height: 360},
		{FormatID: "d", URL: "u", VCodec: "avc1", Height: 360, FormatNote: "Storyboard"},
		{FormatID: "e", URL: "u", VCodec: "avc1", Height: 360, Protocol: "mhtml"},
	})
	assert.Empty(t, sel.Video)
	assert.True(t, sel.Audio.AudioOnly)
}

func TestSelectOneCandidatePerTierFirstWinsTies(t *testing.T) {
	t.Parallel()

	sel := Select([]Descriptor{
		{FormatID: "first", URL: "u", VCodec: "avc1", Ext: "mp4", Height: 720},
		{FormatID: "second", URL: "u", VCodec: "avc1", Ext: "mp4", Height: 720},
		{FormatID: "weaker", URL: "u", VCodec: "vp9", Ext: "webm", Height: 720},
	})
	require.Len(t, sel.Video, 1)
	assert.Equal(t, "first", sel.Video[0].Candidate.FormatID)
}

func TestSelectOrderingAndTruncation(t *testing.T) {
	t.Parallel()

	var ds []Descriptor
	for i := 1; i <= 12; i++ {
		ds = append(ds, Descriptor{FormatID: fmt.Sprint(i), URL: "u", VCodec: "avc1", Height: i * 100})
	}
	ds = append(ds,
		Descriptor{FormatID: "zzz", URL: "u", VCodec: "avc1"},
		Descriptor{FormatID: "aaa", URL: "u", VCodec: "avc1"},
	)
	sel := Select(ds)
	require.Len(t, sel.Video, MaxVideoTiers)
	assert.Equal(t, "1200p", sel.Video[0].Label)
	assert.Equal(t, "300p", sel.Video[MaxVideoTiers-1].Label)

	unranked := Select(ds[12:])
	require.Len(t, unranked.Video, 2)
	assert.Equal(t, "Format zzz", unranked.Video[0].Label)
	assert.Equal(t, "Format aaa", unranked.Video[1].Label)
	assert.Equal(t, Chain{{Selector: "zzz"}, {Selector: "best"}}, unranked.Video[0].Candidate.Chain)
}

func TestSelectEqualRankKeepsFirstSeenOrder(t *testing.T) {
	t.Parallel()

	sel := Select([]Descriptor{
		{FormatID: "298", URL: "u", VCodec: "avc1", Ext: "mp4"},
		{FormatID: "136", URL: "u", VCodec: "avc1", Ext: "mp4"},
		{FormatID: "137", URL: "u", VCodec: "avc1", Ext: "mp4"},
	})
	require.Len(t, sel.Video, 3)
	assert.Equal(t, "1080p", sel.Video[0].Label)
	assert.Equal(t, "720p60", sel.Video[1].Label)
	assert.Equal(t, "720p", sel.Video[2].Label)
}

func TestSelectPortraitChainCapsPixelHeight(t *testing.T) {
	t.Parallel()

	sel := Select([]Descriptor{
		{FormatID: "p1", URL: "https://x", VCodec: "avc1", Ext: "mp4", Width: 1080, Height: 1920},
		{FormatID: "p2", URL: "https://x", VCodec: "avc1", Ext: "mp4", Resolution: "720x1280"},
	})
	require.Len(t, sel.Video, 2)

	assert.Equal(t, "1080p", sel.Video[0].Label)
	assert.Equal(t, 1080, sel.Video[0].Rank)
	assert.Equal(t, "p1/best[height<=1920]/best[height<=720]/best", sel.Video[0].Candidate.Chain.String())

	assert.Equal(t, "720p", sel.Video[1].Label)
	assert.Equal(t, "p2/best[height<=1280]/best[height<=720]/best", sel.Video[1].Candidate.Chain.String())
}

func TestVideoChain(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "136/best[height<=720]/best", VideoChain("136", 720).String())
	assert.Equal(t, "135/best[height<=480]/best", VideoChain("135", 480).String())
	assert.Equal(t, "x/best", VideoChain("x", 0).String())
	assert.Equal(t, "best/best[height<=1080]/best[height<=720]", VideoChain("best", 1080).String())
}

func TestLookup(t *testing.T) {
	t.Parallel()

	sel := Select([]Descriptor{{FormatID: "18", URL: "u", VCodec: "avc1"}})
	tier, ok := sel.Lookup("18")
	require.True(t, ok)
	assert.Equal(t, "360p", tier.Label)

	tier, ok = sel.Lookup(AudioTierID)
	require.True(t, ok)
	assert.True(t, tier.AudioOnly)

	_, ok = sel.Lookup("nope")
	assert.False(t, ok)
}
