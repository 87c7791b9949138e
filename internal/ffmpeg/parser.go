// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ffrunner - FFmpeg 进程监管与进度解析工具

package ffmpeg

import (
	"github.com/ZSC714725/ffrunner/internal/ffmpeg/event"
	"github.com/ZSC714725/ffrunner/internal/ffmpeg/parse"
)

// lineParser classifies stderr lines and publishes the events. It is only
// called from the process reader goroutine.
type lineParser struct {
	dispatcher *event.Dispatcher
	input      string
	output     string

	state      parse.State
	completion *parse.Completion
}

func newLineParser(d *event.Dispatcher, inv Invocation) *lineParser {
	return &lineParser{
		dispatcher: d,
		input:      inv.Input,
		output:     inv.Output,
	}
}

func (p *lineParser) Parse(line string) error {
	if err := p.dispatcher.PublishData(event.Data{Line: line}); err != nil {
		return err
	}

	result := parse.Classify(line, &p.state)

	switch result.Kind {
	case parse.KindProgress:
		return p.dispatcher.PublishProgress(event.Progress{
			Input:    p.input,
			Output:   p.output,
			Progress: *result.Progress,
		})
	case parse.KindCompletion:
		// FFmpeg prints one summary per run, anything after is plain data
		if p.completion != nil {
			return nil
		}
		p.completion = result.Completion
		return p.dispatcher.PublishCompleted(event.Completed{
			Input:      p.input,
			Output:     p.output,
			Completion: *result.Completion,
		})
	}
	return nil
}
