package event

import (
	"errors"
	"testing"

	"github.com/ZSC714725/ffrunner/internal/ffmpeg/parse"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_Order(t *testing.T) {
	d := NewDispatcher()

	var got []string
	d.OnData(func(e Data) error {
		got = append(got, "a:"+e.Line)
		return nil
	})
	d.OnData(func(e Data) error {
		got = append(got, "b:"+e.Line)
		return nil
	})

	require.NoError(t, d.PublishData(Data{Line: "one"}))
	require.NoError(t, d.PublishData(Data{Line: "two"}))
	require.Equal(t, []string{"a:one", "b:one", "a:two", "b:two"}, got)
}

func TestDispatcher_IndependentLists(t *testing.T) {
	d := NewDispatcher()

	var data, progress, completed int
	d.OnData(func(Data) error { data++; return nil })
	d.OnProgress(func(Progress) error { progress++; return nil })
	d.OnCompleted(func(Completed) error { completed++; return nil })

	require.NoError(t, d.PublishProgress(Progress{Input: "in.mp4"}))
	require.NoError(t, d.PublishProgress(Progress{Input: "in.mp4"}))
	require.NoError(t, d.PublishCompleted(Completed{Completion: parse.Completion{MuxingOverhead: 1.5}}))

	require.Equal(t, 0, data)
	require.Equal(t, 2, progress)
	require.Equal(t, 1, completed)
}

func TestDispatcher_NoHandlers(t *testing.T) {
	d := NewDispatcher()
	require.NoError(t, d.PublishData(Data{Line: "x"}))
	require.NoError(t, d.PublishProgress(Progress{}))
	require.NoError(t, d.PublishCompleted(Completed{}))

	var nilDispatcher *Dispatcher
	require.NoError(t, nilDispatcher.PublishData(Data{Line: "x"}))
}

func TestDispatcher_ErrorsDoNotStopDelivery(t *testing.T) {
	d := NewDispatcher()
	boom := errors.New("boom")

	called := 0
	d.OnData(func(Data) error { called++; return boom })
	d.OnData(func(Data) error { called++; return nil })

	err := d.PublishData(Data{Line: "x"})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 2, called)
}

func TestDispatcher_Panic(t *testing.T) {
	d := NewDispatcher()

	reached := false
	d.OnProgress(func(Progress) error { panic("bad handler") })
	d.OnProgress(func(Progress) error { reached = true; return nil })

	err := d.PublishProgress(Progress{})
	require.Error(t, err)

	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, "progress", pe.Event)
	require.Equal(t, "bad handler", pe.Value)
	require.True(t, reached)
}
