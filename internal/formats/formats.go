// Package formats turns the raw variant list of a remote media page into a
// short menu of quality tiers, one reliable candidate per tier, each with an
// ordered fallback chain of extractor selectors.
package formats

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// MaxVideoTiers bounds the menu so it fits a chat inline keyboard.
const MaxVideoTiers = 10

// AudioTierID is the pseudo format id of the synthetic audio-only tier.
const AudioTierID = "audio"

const audioTierLabel = "Audio only (best)"

// Descriptor is one entry of the extractor's "formats" array.
type Descriptor struct {
	FormatID       string  `json:"format_id"`
	URL            string  `json:"url"`
	Ext            string  `json:"ext"`
	VCodec         string  `json:"vcodec"`
	ACodec         string  `json:"acodec"`
	Protocol       string  `json:"protocol"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	Resolution     string  `json:"resolution"`
	FormatNote     string  `json:"format_note"`
	DynamicRange   string  `json:"dynamic_range"`
	Filesize       float64 `json:"filesize"`
	FilesizeApprox float64 `json:"filesize_approx"`
}

// Size is the exact size when known, else the approximate one, else 0.
func (d Descriptor) Size() int64 {
	if d.Filesize > 0 {
		return int64(d.Filesize)
	}
	if d.FilesizeApprox > 0 {
		return int64(d.FilesizeApprox)
	}
	return 0
}

// Catalog is the probed description of a remote media page.
type Catalog struct {
	ID         string       `json:"id"`
	Title      string       `json:"title"`
	Uploader   string       `json:"uploader"`
	Duration   float64      `json:"duration"`
	WebpageURL string       `json:"webpage_url"`
	Formats    []Descriptor `json:"formats"`
}

// Step is one attempt in a fallback chain.
type Step struct {
	Selector     string
	ExtractAudio bool
}

// Chain is tried in order; the first step that yields a file wins.
type Chain []Step

// String renders the chain the way the extractor's -f flag would read it.
func (c Chain) String() string {
	parts := make([]string, 0, len(c))
	for _, s := range c {
		parts = append(parts, s.Selector)
	}
	return strings.Join(parts, "/")
}

// Candidate is the variant chosen to represent a tier.
type Candidate struct {
	FormatID      string
	Label         string
	Rank          int
	EstimatedSize int64
	Ext           string
	VCodec        string
	Protocol      string
	Score         int
	Chain         Chain
}

// Tier is one menu entry.
type Tier struct {
	Label     string
	Rank      int
	Candidate Candidate
	AudioOnly bool
}

// ID is the value a caller passes back to pick this tier.
func (t Tier) ID() string {
	if t.AudioOnly {
		return AudioTierID
	}
	return t.Candidate.FormatID
}

// Selection is the outcome of Select.
type Selection struct {
	Video []Tier
	Audio Tier
}

// Tiers returns video tiers followed by the audio tier.
func (s Selection) Tiers() []Tier {
	out := make([]Tier, 0, len(s.Video)+1)
	out = append(out, s.Video...)
	return append(out, s.Audio)
}

// Lookup finds a tier by the id returned from Tier.ID.
func (s Selection) Lookup(id string) (Tier, bool) {
	if id == AudioTierID {
		return s.Audio, true
	}
	for _, t := range s.Video {
		if t.Candidate.FormatID == id {
			return t, true
		}
	}
	return Tier{}, false
}

// Select filters, scores and groups descriptors into tiers.
func Select(descriptors []Descriptor) Selection {
	type group struct {
		tier  Tier
		order int
	}
	groups := map[string]*group{}
	order := 0

	for _, d := range descriptors {
		if !usable(d) {
			continue
		}
		label, rank := Quality(d)
		c := Candidate{
			FormatID:      d.FormatID,
			Label:         label,
			Rank:          rank,
			EstimatedSize: d.Size(),
			Ext:           d.Ext,
			VCodec:        d.VCodec,
			Protocol:      protocolOf(d),
			Score:         Score(d),
		}
		c.Chain = VideoChain(c.FormatID, chainHeight(d, rank))

		g, ok := groups[label]
		if !ok {
			groups[label] = &group{tier: Tier{Label: label, Rank: rank, Candidate: c}, order: order}
			order++
			continue
		}
		if c.Score > g.tier.Candidate.Score {
			g.tier.Candidate = c
			g.tier.Rank = rank
		}
	}

	ordered := make([]*group, 0, len(groups))
	for _, g := range groups {
		ordered = append(ordered, g)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].tier.Rank != ordered[j].tier.Rank {
			return ordered[i].tier.Rank > ordered[j].tier.Rank
		}
		return ordered[i].order < ordered[j].order
	})
	video := make([]Tier, 0, len(ordered))
	for _, g := range ordered {
		video = append(video, g.tier)
	}
	if len(video) > MaxVideoTiers {
		video = video[:MaxVideoTiers]
	}

	return Selection{Video: video, Audio: AudioTier()}
}

// AudioTier is the synthetic best-audio tier offered with every selection.
func AudioTier() Tier {
	return Tier{
		Label:     audioTierLabel,
		AudioOnly: true,
		Candidate: Candidate{
			FormatID: "bestaudio",
			Label:    audioTierLabel,
			Chain:    AudioChain(),
		},
	}
}

// VideoChain builds exact id, then height-capped best, then best.
func VideoChain(formatID string, height int) Chain {
	chain := Chain{{Selector: formatID}}
	if height > 0 {
		chain = append(chain, Step{Selector: fmt.Sprintf("best[height<=%d]", height)})
		if height > 720 {
			chain = append(chain, Step{Selector: "best[height<=720]"})
		}
	}
	chain = append(chain, Step{Selector: "best"})
	return dedupe(chain)
}

// AudioChain extracts audio from the best audio stream, or from the best muxed stream.
func AudioChain() Chain {
	return Chain{
		{Selector: "bestaudio", ExtractAudio: true},
		{Selector: "best", ExtractAudio: true},
	}
}

func dedupe(c Chain) Chain {
	seen := make(map[Step]struct{}, len(c))
	out := c[:0]
	for _, s := range c {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

var imageExts = map[string]struct{}{
	"mhtml": {}, "jpg": {}, "jpeg": {}, "png": {}, "webp": {},
}

func usable(d Descriptor) bool {
	vcodec := strings.TrimSpace(d.VCodec)
	if vcodec == "" || vcodec == "none" {
		return false
	}
	if strings.TrimSpace(d.URL) == "" {
		return false
	}
	if _, ok := imageExts[strings.ToLower(d.Ext)]; ok {
		return false
	}
	if strings.Contains(strings.ToLower(d.FormatNote), "storyboard") {
		return false
	}
	return protocolOf(d) != "mhtml"
}

func protocolOf(d Descriptor) string {
	if p := strings.TrimSpace(d.Protocol); p != "" {
		return p
	}
	return "https"
}

var (
	noteQuality = regexp.MustCompile(`(\d+)p`)

	knownQualities = map[string]struct {
		label string
		rank  int
	}{
		"18": {"360p", 360}, "22": {"720p", 720}, "37": {"1080p", 1080}, "38": {"3072p", 3072},
		"133": {"240p", 240}, "134": {"360p", 360}, "135": {"480p", 480}, "136": {"720p", 720},
		"137": {"1080p", 1080}, "138": {"2160p", 2160}, "298": {"720p60", 720}, "299": {"1080p60", 1080},
		"242": {"240p", 240}, "243": {"360p", 360}, "244": {"480p", 480}, "247": {"720p", 720},
		"248": {"1080p", 1080}, "278": {"144p", 144}, "394": {"144p", 144}, "395": {"240p", 240},
		"396": {"360p", 360}, "397": {"480p", 480}, "398": {"720p", 720}, "399": {"1080p", 1080},
	}
)

// Quality derives a tier label and rank. Portrait media is ranked by its width.
func Quality(d Descriptor) (string, int) {
	if d.Height > 0 && d.Width > 0 && d.Height > d.Width {
		return pLabel(d.Width)
	}
	if d.Height > 0 {
		return pLabel(d.Height)
	}
	if w, h, ok := parseResolution(d.Resolution); ok {
		if h > w {
			return pLabel(w)
		}
		return pLabel(h)
	}
	if m := noteQuality.FindStringSubmatch(d.FormatNote); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return pLabel(n)
		}
	}
	if q, ok := knownQualities[d.FormatID]; ok {
		return q.label, q.rank
	}
	return "Format " + d.FormatID, 0
}

// chainHeight is the pixel height the fallback steps cap on. It differs from
// the rank for portrait media, which is ranked by width.
func chainHeight(d Descriptor, rank int) int {
	if d.Height > 0 {
		return d.Height
	}
	if _, h, ok := parseResolution(d.Resolution); ok && h > 0 {
		return h
	}
	return rank
}

func pLabel(n int) (string, int) {
	return strconv.Itoa(n) + "p", n
}

func parseResolution(res string) (int, int, bool) {
	w, h, ok := strings.Cut(strings.TrimSpace(res), "x")
	if !ok {
		return 0, 0, false
	}
	width, err := strconv.Atoi(w)
	if err != nil {
		return 0, 0, false
	}
	height, err := strconv.Atoi(h)
	if err != nil {
		return 0, 0, false
	}
	return width, height, true
}

var segmentedProtocols = map[string]struct{}{
	"m3u8": {}, "m3u8_native": {}, "hls": {}, "http_dash_segments": {},
}

// Score ranks how likely a variant is to download cleanly.
func Score(d Descriptor) int {
	score := 0

	protocol := protocolOf(d)
	if protocol == "https" {
		score += 100
	} else if _, ok := segmentedProtocols[protocol]; ok {
		score += 20
	}

	switch strings.ToLower(d.Ext) {
	case "mp4":
		score += 50
	case "webm":
		score += 30
	}

	if d.Size() > 0 {
		score += 20
	}

	note := strings.ToLower(d.FormatNote)
	if !strings.Contains(note, "untested") && !strings.Contains(note, "experimental") {
		score += 30
	}

	dr := strings.ToLower(d.DynamicRange)
	if !strings.Contains(note, "3d") && !strings.Contains(note, "hdr") && !strings.HasPrefix(dr, "hdr") {
		score += 10
	}
	return score
}
