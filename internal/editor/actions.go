package editor

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownAction is returned by DecodeAction for an unrecognised kind.
var ErrUnknownAction = errors.New("unknown action")

// Kind is the serialisable tag of an Action.
type Kind string

const (
	KindSetTracks            Kind = "setTracks"
	KindAddNewTracks         Kind = "addNewTracks"
	KindSetActiveTrack       Kind = "setActiveTrack"
	KindSetActiveVideo       Kind = "setActiveVideo"
	KindSetScreenLayout      Kind = "setScreenLayout"
	KindSetLayoutMode        Kind = "setLayoutMode"
	KindSetPanelLayout       Kind = "setPanelLayout"
	KindStartRecordingSchema Kind = "startRecordingSchema"
	KindStopRecordingSchema  Kind = "stopRecordingSchema"
	KindEndSeeking           Kind = "endSeeking"
	KindSetCurrentTime       Kind = "setCurrentTime"
	KindSetIsSeeking         Kind = "setIsSeeking"
	KindSetIsChangingCamera  Kind = "setIsChangingCamera"
	KindSetIsPlaying         Kind = "setIsPlaying"
	KindSetVolume            Kind = "setVolume"
	KindSetTrackVolume       Kind = "setTrackVolume"
	KindSetScale             Kind = "setScale"
	KindSetLoadingState      Kind = "setLoadingState"
	KindSetHistory           Kind = "setHistory"
	KindSetMedia             Kind = "setMedia"
	KindAddToAddedFiles      Kind = "addToAddedFiles"
	KindRemoveFromAddedFiles Kind = "removeFromAddedFiles"
	KindSetTimeRanges        Kind = "setTimeRanges"
	KindRestoreDocument      Kind = "restoreDocument"
)

// Class is the persistence urgency of an action.
type Class int

const (
	// ClassStructural actions are saved only when the state changed
	// significantly.
	ClassStructural Class = iota
	// ClassCritical actions are saved after a short debounce.
	ClassCritical
	// ClassTemporary actions never trigger a save.
	ClassTemporary
)

func (c Class) String() string {
	switch c {
	case ClassCritical:
		return "critical"
	case ClassTemporary:
		return "temporary"
	default:
		return "structural"
	}
}

// Classify maps an action kind to its persistence class.
func Classify(k Kind) Class {
	switch k {
	case KindSetTracks, KindAddNewTracks, KindSetActiveTrack, KindSetActiveVideo,
		KindSetScreenLayout, KindSetLayoutMode, KindSetPanelLayout,
		KindStartRecordingSchema, KindStopRecordingSchema, KindEndSeeking,
		KindSetCurrentTime:
		return ClassCritical
	case KindSetIsSeeking, KindSetIsChangingCamera, KindSetIsPlaying,
		KindSetVolume, KindSetTrackVolume, KindSetScale,
		KindSetLoadingState, KindSetHistory:
		return ClassTemporary
	case KindSetMedia, KindAddToAddedFiles, KindRemoveFromAddedFiles,
		KindSetTimeRanges, KindRestoreDocument:
		return ClassStructural
	default:
		return ClassStructural
	}
}

// Action is a named state mutation.
type Action interface {
	Kind() Kind
}

type (
	SetTracks struct {
		Tracks []Track `json:"tracks"`
	}
	// AddNewTracks builds tracks from media not yet on the timeline.
	AddNewTracks struct {
		Media []MediaFile `json:"media"`
	}
	SetActiveTrack struct {
		TrackID string `json:"trackId"`
	}
	SetActiveVideo struct {
		VideoID string `json:"videoId"`
	}
	SetScreenLayout struct {
		Layout ScreenLayout `json:"layout"`
	}
	SetLayoutMode struct {
		Mode string `json:"mode"`
	}
	SetPanelLayout struct {
		Panel string    `json:"panel"`
		Sizes []float64 `json:"sizes"`
	}
	StartRecordingSchema struct {
		TrackID   string  `json:"trackId"`
		StartTime float64 `json:"startTime"`
	}
	StopRecordingSchema struct{}
	EndSeeking          struct{}
	SetCurrentTime      struct {
		Time float64 `json:"time"`
	}
	SetIsSeeking struct {
		Value bool `json:"value"`
	}
	SetIsChangingCamera struct {
		Value bool `json:"value"`
	}
	SetIsPlaying struct {
		Value bool `json:"value"`
	}
	SetVolume struct {
		Volume float64 `json:"volume"`
	}
	SetTrackVolume struct {
		TrackID string  `json:"trackId"`
		Volume  float64 `json:"volume"`
	}
	SetScale struct {
		Scale float64 `json:"scale"`
	}
	SetLoadingState struct {
		Loading bool `json:"loading"`
	}
	SetHistory struct {
		SnapshotIDs  []int64 `json:"snapshotIds"`
		CurrentIndex int     `json:"currentIndex"`
	}
	SetMedia struct {
		Media []MediaFile `json:"media"`
	}
	AddToAddedFiles struct {
		Paths []string `json:"paths"`
	}
	RemoveFromAddedFiles struct {
		Paths []string `json:"paths"`
	}
	SetTimeRanges struct {
		TimeRanges map[string][]TimeRange `json:"timeRanges"`
	}
	// RestoreDocument replaces the persisted fields with a stored document
	// (undo, redo, startup restore). Transient fields are kept.
	RestoreDocument struct {
		Document Document `json:"document"`
	}
)

func (SetTracks) Kind() Kind            { return KindSetTracks }
func (AddNewTracks) Kind() Kind         { return KindAddNewTracks }
func (SetActiveTrack) Kind() Kind       { return KindSetActiveTrack }
func (SetActiveVideo) Kind() Kind       { return KindSetActiveVideo }
func (SetScreenLayout) Kind() Kind      { return KindSetScreenLayout }
func (SetLayoutMode) Kind() Kind        { return KindSetLayoutMode }
func (SetPanelLayout) Kind() Kind       { return KindSetPanelLayout }
func (StartRecordingSchema) Kind() Kind { return KindStartRecordingSchema }
func (StopRecordingSchema) Kind() Kind  { return KindStopRecordingSchema }
func (EndSeeking) Kind() Kind           { return KindEndSeeking }
func (SetCurrentTime) Kind() Kind       { return KindSetCurrentTime }
func (SetIsSeeking) Kind() Kind         { return KindSetIsSeeking }
func (SetIsChangingCamera) Kind() Kind  { return KindSetIsChangingCamera }
func (SetIsPlaying) Kind() Kind         { return KindSetIsPlaying }
func (SetVolume) Kind() Kind            { return KindSetVolume }
func (SetTrackVolume) Kind() Kind       { return KindSetTrackVolume }
func (SetScale) Kind() Kind             { return KindSetScale }
func (SetLoadingState) Kind() Kind      { return KindSetLoadingState }
func (SetHistory) Kind() Kind           { return KindSetHistory }
func (SetMedia) Kind() Kind             { return KindSetMedia }
func (AddToAddedFiles) Kind() Kind      { return KindAddToAddedFiles }
func (RemoveFromAddedFiles) Kind() Kind { return KindRemoveFromAddedFiles }
func (SetTimeRanges) Kind() Kind        { return KindSetTimeRanges }
func (RestoreDocument) Kind() Kind      { return KindRestoreDocument }

// DecodeAction builds an Action from its wire form.
func DecodeAction(kind Kind, payload json.RawMessage) (Action, error) {
	var a Action
	switch kind {
	case KindSetTracks:
		a = &SetTracks{}
	case KindAddNewTracks:
		a = &AddNewTracks{}
	case KindSetActiveTrack:
		a = &SetActiveTrack{}
	case KindSetActiveVideo:
		a = &SetActiveVideo{}
	case KindSetScreenLayout:
		a = &SetScreenLayout{}
	case KindSetLayoutMode:
		a = &SetLayoutMode{}
	case KindSetPanelLayout:
		a = &SetPanelLayout{}
	case KindStartRecordingSchema:
		a = &StartRecordingSchema{}
	case KindStopRecordingSchema:
		return StopRecordingSchema{}, nil
	case KindEndSeeking:
		return EndSeeking{}, nil
	case KindSetCurrentTime:
		a = &SetCurrentTime{}
	case KindSetIsSeeking:
		a = &SetIsSeeking{}
	case KindSetIsChangingCamera:
		a = &SetIsChangingCamera{}
	case KindSetIsPlaying:
		a = &SetIsPlaying{}
	case KindSetVolume:
		a = &SetVolume{}
	case KindSetTrackVolume:
		a = &SetTrackVolume{}
	case KindSetScale:
		a = &SetScale{}
	case KindSetLoadingState:
		a = &SetLoadingState{}
	case KindSetMedia:
		a = &SetMedia{}
	case KindAddToAddedFiles:
		a = &AddToAddedFiles{}
	case KindRemoveFromAddedFiles:
		a = &RemoveFromAddedFiles{}
	case KindSetTimeRanges:
		a = &SetTimeRanges{}
	default:
		// History and restore are driven by the server, never by clients.
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, kind)
	}

	if len(payload) > 0 {
		if err := json.Unmarshal(payload, a); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", kind, err)
		}
	}
	return deref(a), nil
}

func deref(a Action) Action {
	switch v := a.(type) {
	case *SetTracks:
		return *v
	case *AddNewTracks:
		return *v
	case *SetActiveTrack:
		return *v
	case *SetActiveVideo:
		return *v
	case *SetScreenLayout:
		return *v
	case *SetLayoutMode:
		return *v
	case *SetPanelLayout:
		return *v
	case *StartRecordingSchema:
		return *v
	case *SetCurrentTime:
		return *v
	case *SetIsSeeking:
		return *v
	case *SetIsChangingCamera:
		return *v
	case *SetIsPlaying:
		return *v
	case *SetVolume:
		return *v
	case *SetTrackVolume:
		return *v
	case *SetScale:
		return *v
	case *SetLoadingState:
		return *v
	case *SetMedia:
		return *v
	case *AddToAddedFiles:
		return *v
	case *RemoveFromAddedFiles:
		return *v
	case *SetTimeRanges:
		return *v
	default:
		return a
	}
}
