//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2024 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

// Package profiles repairs serialized player profiles that newer servers
// refuse to load: profile names have to be valid player names, and a
// profile needs a name or a unique id.
package profiles

import (
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/weaviate/diskstate/usecases/migration"
)

const (
	Name = "MC 1.20.5 player profiles (head items)"

	profileMarker = "==: PlayerProfile"
	uniqueIDKey   = "uniqueId: "
	nameKey       = "name: "
	emptyName     = `""`

	maxNameLength = 16
)

// DummyUniqueID is added to profiles that lose their name. It is a fixed
// version 3 UUID that no player can have and that is easy to spot in the
// saved data. It is not the nil UUID, which older servers used internally
// to mean "no id".
var DummyUniqueID = uuid.MustParse("5458ec26-8221-366d-8836-be7a07a5e29b")

type step struct {
	logger logrus.FieldLogger
}

// New returns the migration step. Repairs that drop data are logged as
// warnings.
func New(logger logrus.FieldLogger) migration.Step {
	return &step{logger: logger}
}

func (s *step) Name() string {
	return Name
}

// line is one line of the input. Content excludes the line terminator.
type line struct {
	content    string
	terminator string
	offset     int
}

func splitLines(data string) []line {
	var lines []line
	offset := 0
	for offset < len(data) {
		end := strings.IndexByte(data[offset:], '\n')
		raw := data[offset:]
		if end >= 0 {
			raw = data[offset : offset+end+1]
		}

		content := strings.TrimSuffix(raw, "\n")
		content = strings.TrimSuffix(content, "\r")
		lines = append(lines, line{
			content:    content,
			terminator: raw[len(content):],
			offset:     offset,
		})
		offset += len(raw)
	}
	return lines
}

// profile locates the lines of one serialized profile. A profile starts
// with a "<indent>==: PlayerProfile" line, optionally followed by
// "<indent>uniqueId: ..." and then "<indent>name: ...". Only blank lines
// may appear in between.
type profile struct {
	prefix   string
	header   int
	uniqueID int // -1 if missing
	name     int
}

func findProfile(lines []line, header int) (profile, bool) {
	content := lines[header].content
	if !strings.HasSuffix(content, profileMarker) {
		return profile{}, false
	}

	p := profile{
		prefix:   strings.TrimSuffix(content, profileMarker),
		header:   header,
		uniqueID: -1,
	}

	i := skipBlank(lines, header+1)
	if i < len(lines) && strings.HasPrefix(lines[i].content, p.prefix+uniqueIDKey) {
		p.uniqueID = i
		i = skipBlank(lines, i+1)
	}
	if i >= len(lines) || !strings.HasPrefix(lines[i].content, p.prefix+nameKey) {
		return profile{}, false
	}

	p.name = i
	return p, true
}

func skipBlank(lines []line, i int) int {
	for i < len(lines) && lines[i].content == "" {
		i++
	}
	return i
}

func (s *step) Apply(data string) (string, error) {
	lines := splitLines(data)
	changed := false

	for i := 0; i < len(lines); i++ {
		p, ok := findProfile(lines, i)
		if !ok {
			continue
		}

		repaired, err := s.repair(lines, p)
		if err != nil {
			return "", errors.Wrapf(err, "player profile at line %d", p.header+1)
		}
		if repaired != nil {
			lines = repaired
			changed = true
		}

		// continue after the name line, which may have moved by one
		i = p.name
		if repaired != nil && p.uniqueID < 0 {
			i++
		}
	}

	if !changed {
		return data, nil
	}

	var b strings.Builder
	b.Grow(len(data) + len(DummyUniqueID.String()) + 32)
	for _, l := range lines {
		b.WriteString(l.content)
		b.WriteString(l.terminator)
	}
	return b.String(), nil
}

// repair returns the modified lines, or nil if the profile is left as is.
func (s *step) repair(lines []line, p profile) ([]line, error) {
	nameValue := strings.TrimPrefix(lines[p.name].content, p.prefix+nameKey)
	name, err := decodeScalar(nameValue)
	if err != nil {
		return nil, errors.Wrap(err, "decode profile name")
	}
	if name == nil || isValidPlayerName(*name) {
		return nil, nil
	}

	position := lines[p.header].offset
	log := s.logger.WithFields(logrus.Fields{
		"action":   "raw_data_migration",
		"step":     Name,
		"position": position,
		"line":     p.header + 1,
	})

	log.Warnf("removing invalid profile name '%s' near position %d", *name, position)

	out := make([]line, len(lines), len(lines)+1)
	copy(out, lines)
	out[p.name].content = p.prefix + nameKey + emptyName

	if p.uniqueID >= 0 {
		idValue := strings.TrimPrefix(out[p.uniqueID].content, p.prefix+uniqueIDKey)
		if idValue != "" {
			return out, nil
		}

		log.Warnf("adding missing profile id near position %d", position)
		out[p.uniqueID].content = p.prefix + uniqueIDKey + DummyUniqueID.String()
		return out, nil
	}

	log.Warnf("adding missing profile id near position %d", position)
	idLine := line{
		content:    p.prefix + uniqueIDKey + DummyUniqueID.String(),
		terminator: "\n",
	}
	out = append(out[:p.name], append([]line{idLine}, out[p.name:]...)...)
	return out, nil
}

// decodeScalar decodes a YAML scalar. It returns nil for a null or empty
// value.
func decodeScalar(value string) (*string, error) {
	var s *string
	if err := yaml.Unmarshal([]byte(value), &s); err != nil {
		return nil, err
	}
	return s, nil
}

func isValidPlayerName(name string) bool {
	if len([]rune(name)) > maxNameLength {
		return false
	}
	for _, c := range name {
		if c <= 32 || c >= 127 {
			return false
		}
	}
	return true
}
