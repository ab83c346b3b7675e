package ais

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

// fragmentTTL bounds how long a partial multi-fragment sentence may wait for
// its remaining fragments before being discarded.
const fragmentTTL = 30 * time.Second

// Sentence is one parsed AIVDM/AIVDO NMEA sentence.
type Sentence struct {
	FragCount int
	FragNum   int
	SeqID     string
	Channel   string
	Payload   string
	FillBits  int
}

// ParseSentence parses a raw NMEA line. Only !AIVDM/!AIVDO sentences with at
// least 7 comma fields are recognized; the trailing *CRC is stripped without
// verification.
func ParseSentence(line string) (*Sentence, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "!AIVDM") && !strings.HasPrefix(line, "!AIVDO") {
		return nil, fmt.Errorf("not an AIS sentence")
	}
	if star := strings.IndexByte(line, '*'); star >= 0 {
		line = line[:star]
	}

	fields := strings.Split(line, ",")
	if len(fields) < 7 {
		return nil, fmt.Errorf("short sentence: %d fields", len(fields))
	}

	count, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, fmt.Errorf("bad fragment count %q", fields[1])
	}
	num, err := strconv.Atoi(fields[2])
	if err != nil {
		return nil, fmt.Errorf("bad fragment number %q", fields[2])
	}
	fill, err := strconv.Atoi(fields[6])
	if err != nil {
		return nil, fmt.Errorf("bad fill bits %q", fields[6])
	}
	if count < 1 || num < 1 || num > count {
		return nil, fmt.Errorf("bad fragment fields %d/%d", num, count)
	}

	return &Sentence{
		FragCount: count,
		FragNum:   num,
		SeqID:     fields[3],
		Channel:   fields[4],
		Payload:   fields[5],
		FillBits:  fill,
	}, nil
}

// fragmentSet accumulates the payloads of one multi-fragment sentence group.
type fragmentSet struct {
	total    int
	parts    map[int]string
	fillBits int // fill bits of the final fragment (FragNum == FragCount)
}

// Assembler reassembles multi-fragment sentences keyed by (sequence id,
// channel). Partial sets that never complete are evicted after fragmentTTL.
type Assembler struct {
	pending *cache.Cache
}

// NewAssembler returns an empty assembler.
func NewAssembler() *Assembler {
	return &Assembler{
		pending: cache.New(fragmentTTL, time.Minute),
	}
}

// Add feeds one sentence in. When the sentence completes a message - either
// a single-fragment sentence or the final piece of a group - it returns the
// concatenated payload, the fill-bit count of the last fragment, and true.
func (a *Assembler) Add(s *Sentence) (payload string, fillBits int, ok bool) {
	if s.FragCount == 1 {
		return s.Payload, s.FillBits, true
	}

	key := s.SeqID + "/" + s.Channel
	set := &fragmentSet{total: s.FragCount, parts: make(map[int]string)}
	if v, found := a.pending.Get(key); found {
		set = v.(*fragmentSet)
	}

	set.parts[s.FragNum] = s.Payload
	if s.FragNum == s.FragCount {
		set.fillBits = s.FillBits
	}

	if len(set.parts) < set.total {
		a.pending.Set(key, set, cache.DefaultExpiration)
		return "", 0, false
	}

	a.pending.Delete(key)
	var sb strings.Builder
	for i := 1; i <= set.total; i++ {
		sb.WriteString(set.parts[i])
	}
	return sb.String(), set.fillBits, true
}
