package pipeline

import "fmt"

// Stage identifies a step of the engraving pipeline.
type Stage int

const (
	StageMonochrome Stage = iota
	StageToneCurve
	StageLevels
	StageDone
)

var stageNames = map[Stage]string{
	StageMonochrome: "monochrome",
	StageToneCurve:  "tone_curve",
	StageLevels:     "levels",
	StageDone:       "done",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Next returns the stage after s. StageDone is terminal.
func (s Stage) Next() Stage {
	if s >= StageDone {
		return StageDone
	}
	return s + 1
}

// ParseStage converts a stage name back to a Stage.
func ParseStage(name string) (Stage, error) {
	for s, n := range stageNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown stage: %s", name)
}

// MarshalText implements encoding.TextMarshaler.
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
