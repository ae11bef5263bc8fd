package backend

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/veranemoloko/fetchd/internal/domain"
)

// Progress is a partial update extracted from one line of worker output.
// Nil fields mean the line said nothing about them; the engine must leave
// the previously known values untouched.
type Progress struct {
	Percent     *float64
	Speed       *string
	ETA         *string
	CurrentSize *int64
	TotalSize   *int64
}

// Parser extracts progress updates from one backend's output lines.
type Parser interface {
	ParseLine(line string) (Progress, bool)
}

// ParserFor returns the progress parser matching the backend kind.
func ParserFor(kind domain.BackendKind) Parser {
	switch kind {
	case domain.BackendVideo:
		return ytdlpParser{}
	case domain.BackendStream:
		return ffmpegParser{}
	default:
		return aria2Parser{}
	}
}

var (
	// yt-dlp: [download]  12.3% of 5.00MiB at 1.20MiB/s ETA 00:45
	reYtdlpPct = regexp.MustCompile(`([0-9]+(?:\.[0-9]+)?)%`)
	reYtdlpOf  = regexp.MustCompile(`\bof\s+~?([0-9.]+\s?[KMGT]?i?B)`)
	reYtdlpAt  = regexp.MustCompile(`\bat\s+([0-9.]+\s?[KMGT]?i?B/s)`)
	reYtdlpETA = regexp.MustCompile(`\bETA\s+([0-9:]+)`)

	// aria2c: [#2089b0 3.1MiB/10MiB(31%) CN:8 DL:1.2MiB ETA:45s]
	reAria2   = regexp.MustCompile(`\[#\w+\s+([0-9.]+[KMGT]?i?B)/([0-9.]+[KMGT]?i?B)\((\d+)%\)`)
	reAriaDL  = regexp.MustCompile(`\bDL:([0-9.]+[KMGT]?i?B)`)
	reAriaETA = regexp.MustCompile(`\bETA:([0-9hms]+)`)

	// ffmpeg: size=    1024KiB time=00:01:00.00 bitrate= 139.9kbits/s speed=1.2x
	reFFSize  = regexp.MustCompile(`\bsize=\s*([0-9]+[kKmMgG]?i?B)`)
	reFFSpeed = regexp.MustCompile(`\bspeed=\s*([0-9.]+x)`)
)

type ytdlpParser struct{}

func (ytdlpParser) ParseLine(line string) (Progress, bool) {
	if !strings.HasPrefix(strings.TrimSpace(line), "[download]") {
		return Progress{}, false
	}

	var p Progress
	matched := false

	if m := reYtdlpPct.FindStringSubmatch(line); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			p.Percent = &v
			matched = true
		}
	}
	if m := reYtdlpOf.FindStringSubmatch(line); m != nil {
		if v, ok := parseByteSize(m[1]); ok {
			p.TotalSize = &v
			matched = true
		}
	}
	if m := reYtdlpAt.FindStringSubmatch(line); m != nil {
		s := strings.ReplaceAll(m[1], " ", "")
		p.Speed = &s
		matched = true
	}
	if m := reYtdlpETA.FindStringSubmatch(line); m != nil {
		p.ETA = &m[1]
		matched = true
	}

	// Derive transferred bytes when the line carries both percent and total.
	if p.Percent != nil && p.TotalSize != nil {
		cur := int64(*p.Percent / 100 * float64(*p.TotalSize))
		p.CurrentSize = &cur
	}

	return p, matched
}

type aria2Parser struct{}

func (aria2Parser) ParseLine(line string) (Progress, bool) {
	m := reAria2.FindStringSubmatch(line)
	if m == nil {
		return Progress{}, false
	}

	var p Progress
	if v, ok := parseByteSize(m[1]); ok {
		p.CurrentSize = &v
	}
	if v, ok := parseByteSize(m[2]); ok {
		p.TotalSize = &v
	}
	if v, err := strconv.ParseFloat(m[3], 64); err == nil {
		p.Percent = &v
	}
	if dm := reAriaDL.FindStringSubmatch(line); dm != nil {
		s := dm[1] + "/s"
		p.Speed = &s
	}
	if em := reAriaETA.FindStringSubmatch(line); em != nil {
		p.ETA = &em[1]
	}
	return p, true
}

type ffmpegParser struct{}

func (ffmpegParser) ParseLine(line string) (Progress, bool) {
	var p Progress
	matched := false

	if m := reFFSize.FindStringSubmatch(line); m != nil {
		if v, ok := parseByteSize(m[1]); ok {
			p.CurrentSize = &v
			matched = true
		}
	}
	if m := reFFSpeed.FindStringSubmatch(line); m != nil {
		p.Speed = &m[1]
		matched = true
	}
	return p, matched
}

var sizeUnits = map[string]float64{
	"B":   1,
	"KB":  1000,
	"MB":  1000 * 1000,
	"GB":  1000 * 1000 * 1000,
	"TB":  1000 * 1000 * 1000 * 1000,
	"KIB": 1024,
	"MIB": 1024 * 1024,
	"GIB": 1024 * 1024 * 1024,
	"TIB": 1024 * 1024 * 1024 * 1024,
}

// parseByteSize converts worker-formatted sizes like "5.00MiB" or
// "1024KiB" to bytes.
func parseByteSize(s string) (int64, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, " ", ""))
	i := strings.IndexFunc(s, func(r rune) bool {
		return (r < '0' || r > '9') && r != '.'
	})
	if i <= 0 {
		return 0, false
	}
	num, err := strconv.ParseFloat(s[:i], 64)
	if err != nil {
		return 0, false
	}
	mult, ok := sizeUnits[strings.ToUpper(s[i:])]
	if !ok {
		return 0, false
	}
	return int64(num * mult), true
}
