// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/tidwall/jsonc"
	"golang.org/x/term"

	"github.com/bureau-foundation/dispatch/lib/codec"
	"github.com/bureau-foundation/dispatch/messagehandler"
)

// readCommandFile parses a command from a JSON file that may contain
// comments and trailing commas.
func readCommandFile(path string) (*messagehandler.Command, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading command: %w", err)
	}

	var command messagehandler.Command
	decoder := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	decoder.UseNumber()
	if err := decoder.Decode(&command); err != nil {
		return nil, fmt.Errorf("parsing command %s: %w", path, err)
	}
	if command.ModuleName == "" || command.CommandName == "" {
		return nil, fmt.Errorf("command %s: module and command are required", path)
	}
	command.Params = normalizeNumbers(command.Params)
	return &command, nil
}

// normalizeNumbers turns json.Number params into int64 where they are
// integral and float64 otherwise, so they travel as CBOR integers.
func normalizeNumbers(params map[string]any) map[string]any {
	for key, value := range params {
		params[key] = normalizeValue(value)
	}
	return params
}

func normalizeValue(value any) any {
	switch typed := value.(type) {
	case json.Number:
		if integer, err := typed.Int64(); err == nil {
			return integer
		}
		if float, err := typed.Float64(); err == nil {
			return float
		}
		return typed.String()
	case map[string]any:
		return normalizeNumbers(typed)
	case []any:
		for index, element := range typed {
			typed[index] = normalizeValue(element)
		}
		return typed
	default:
		return value
	}
}

// replyJSON renders a reply as JSON: the single result for a
// single-context command, or an array with null for every broadcast
// target that failed.
func replyJSON(reply messagehandler.Reply) ([]byte, error) {
	if !reply.IsBroadcast {
		return codec.ToJSON(reply.Data)
	}

	results := make([]json.RawMessage, len(reply.Broadcast))
	for index, raw := range reply.Broadcast {
		converted, err := codec.ToJSON(raw)
		if err != nil {
			return nil, fmt.Errorf("converting result %d: %w", index, err)
		}
		results[index] = converted
	}
	return json.Marshal(results)
}

// writeReply prints reply to output, indented when output is a
// terminal.
func writeReply(output io.Writer, reply messagehandler.Reply) error {
	data, err := replyJSON(reply)
	if err != nil {
		return err
	}
	if file, ok := output.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		var indented bytes.Buffer
		if err := json.Indent(&indented, data, "", "  "); err == nil {
			data = indented.Bytes()
		}
	}
	data = append(data, '\n')
	_, err = output.Write(data)
	return err
}
