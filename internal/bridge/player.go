package bridge

import "editorsync/internal/editor"

// PlayerContext is the global player state the bridge reads and writes.
type PlayerContext interface {
	CurrentTime() float64
	SetCurrentTime(t float64)
	IsPlaying() bool
	SetPlaying(playing bool)
	ActiveVideoID() string
}

// StorePlayer backs PlayerContext with the editor store, so every write is
// a named action the persistence engine can classify.
type StorePlayer struct {
	store *editor.Store
}

func NewStorePlayer(store *editor.Store) *StorePlayer {
	return &StorePlayer{store: store}
}

func (p *StorePlayer) CurrentTime() float64 { return p.store.Snapshot().CurrentTime }

func (p *StorePlayer) SetCurrentTime(t float64) {
	p.store.Dispatch(editor.SetCurrentTime{Time: t})
}

func (p *StorePlayer) IsPlaying() bool { return p.store.Snapshot().IsPlaying }

func (p *StorePlayer) SetPlaying(playing bool) {
	p.store.Dispatch(editor.SetIsPlaying{Value: playing})
}

func (p *StorePlayer) ActiveVideoID() string { return p.store.Snapshot().ActiveVideoID }
