package toc

import (
	"encoding/json"
	"fmt"
	"io"
	"iter"
)

type parserState int

const (
	stateStart parserState = iota
	stateObject
	stateArray
	stateDone
)

// StreamParser handles streaming JSON parsing for large TOC files.
// Elements of reporting_structure are decoded one at a time, so memory use is
// bounded by the largest single element rather than by the file.
type StreamParser struct {
	decoder  *json.Decoder
	state    parserState
	err      error
	stats    Stats
	metadata Metadata
}

// NewStreamParser creates a new streaming parser
func NewStreamParser(r io.Reader) *StreamParser {
	return &StreamParser{
		decoder: json.NewDecoder(r),
	}
}

// Next returns the next reporting structure in the file. It returns io.EOF
// once the top-level object has been fully read. Any other error is fatal and
// is returned again by every later call.
func (p *StreamParser) Next() (*ReportingStructure, error) {
	if p.err != nil {
		return nil, p.err
	}
	rs, err := p.next()
	if err != nil {
		p.err = err
		return nil, err
	}
	return rs, nil
}

// All returns a single-pass sequence over the remaining reporting structures.
// Iteration stops after the first error is yielded.
func (p *StreamParser) All() iter.Seq2[*ReportingStructure, error] {
	return func(yield func(*ReportingStructure, error) bool) {
		for {
			rs, err := p.Next()
			if err == io.EOF {
				return
			}
			if !yield(rs, err) || err != nil {
				return
			}
		}
	}
}

func (p *StreamParser) next() (*ReportingStructure, error) {
	for {
		switch p.state {
		case stateStart:
			t, err := p.decoder.Token()
			if err != nil {
				return nil, fmt.Errorf("error reading opening token: %w", unexpected(err))
			}
			if delim, ok := t.(json.Delim); !ok || delim != '{' {
				return nil, fmt.Errorf("expected object start, got %v", t)
			}
			p.state = stateObject

		case stateObject:
			if !p.decoder.More() {
				// Read closing brace
				if _, err := p.decoder.Token(); err != nil {
					return nil, fmt.Errorf("error reading closing token: %w", unexpected(err))
				}
				// Only whitespace may follow the top-level object
				if t, err := p.decoder.Token(); err != io.EOF {
					if err != nil {
						return nil, fmt.Errorf("unexpected data after top-level object: %w", err)
					}
					return nil, fmt.Errorf("unexpected data after top-level object: %v", t)
				}
				p.state = stateDone
				continue
			}
			if err := p.readField(); err != nil {
				return nil, err
			}

		case stateArray:
			if p.decoder.More() {
				var rs ReportingStructure
				if err := p.decoder.Decode(&rs); err != nil {
					return nil, fmt.Errorf("error decoding reporting structure %d: %w", p.stats.Structures, unexpected(err))
				}
				p.stats.Structures++
				p.stats.Plans += int64(len(rs.ReportingPlans))
				p.stats.Files += int64(len(rs.InNetworkFiles))
				return &rs, nil
			}
			// Read closing bracket
			if _, err := p.decoder.Token(); err != nil {
				return nil, fmt.Errorf("error reading reporting_structure end: %w", unexpected(err))
			}
			p.state = stateObject

		case stateDone:
			return nil, io.EOF
		}
	}
}

// readField consumes one top-level field. Metadata fields are captured, the
// reporting_structure array is opened, and everything else is skipped.
func (p *StreamParser) readField() error {
	t, err := p.decoder.Token()
	if err != nil {
		return fmt.Errorf("error reading field name: %w", unexpected(err))
	}
	fieldName, ok := t.(string)
	if !ok {
		return fmt.Errorf("expected field name string, got %T", t)
	}

	switch fieldName {
	case "reporting_entity_name":
		return p.decodeField(fieldName, &p.metadata.ReportingEntityName)
	case "reporting_entity_type":
		return p.decodeField(fieldName, &p.metadata.ReportingEntityType)
	case "last_updated_on":
		return p.decodeField(fieldName, &p.metadata.LastUpdatedOn)
	case "version":
		return p.decodeField(fieldName, &p.metadata.Version)
	case "reporting_structure":
		t, err := p.decoder.Token()
		if err != nil {
			return fmt.Errorf("error reading reporting_structure start: %w", unexpected(err))
		}
		if t == nil {
			// null: nothing to stream
			return nil
		}
		if delim, ok := t.(json.Delim); !ok || delim != '[' {
			return fmt.Errorf("expected array start for reporting_structure, got %v", t)
		}
		p.state = stateArray
		return nil
	default:
		var skip json.RawMessage
		return p.decodeField(fieldName, &skip)
	}
}

func (p *StreamParser) decodeField(name string, v any) error {
	if err := p.decoder.Decode(v); err != nil {
		return fmt.Errorf("error decoding %s: %w", name, unexpected(err))
	}
	return nil
}

// unexpected maps a bare io.EOF from the decoder to io.ErrUnexpectedEOF so a
// truncated document is never mistaken for the end of the sequence.
func unexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

// Stats returns current parsing statistics
func (p *StreamParser) Stats() Stats {
	return p.stats
}

// Metadata returns the TOC file metadata seen so far. Fields that follow the
// reporting_structure array are only filled in once Next has returned io.EOF.
func (p *StreamParser) Metadata() Metadata {
	return p.metadata
}
