package dtb

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNoUnits   = errors.New("no merge units added to builder")
	ErrNoMainSeq = errors.New("generated smil document contains no main seq")
	ErrBadClip   = errors.New("invalid smil clip value")

	ErrNoSegments       = errors.New("no audio segments for audio file")
	ErrMultipleSegments = errors.New("only one audio segment per audio file is supported")
	ErrClipBeyondFile   = errors.New("audio segment clip-end is beyond the end of audio file")
	ErrTrailingAudio    = errors.New("audio file has too much trailing audio after clip-end, trimming is not supported")
)

// AudioMappingError describes audio segment which could not be turned into
// an output audio file.
type AudioMappingError struct {
	Name    string // output audio file name
	Segment AudioSegment
	Err     error
}

func (e *AudioMappingError) Error() string {
	if e.Segment.File == nil {
		return fmt.Sprintf("audio file %s: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("audio file %s from %s [%s - %s of %s]: %v",
		e.Name, e.Segment.File, e.Segment.ClipBegin, e.Segment.ClipEnd, e.Segment.FileDuration.Round(time.Millisecond), e.Err)
}

func (e *AudioMappingError) Unwrap() error {
	return e.Err
}
