package extract

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexer-cc/lexer-gateway/pkg/ledger"
)

// chunkedReader returns its chunks one Read at a time, simulating arbitrary
// network fragmentation.
type chunkedReader struct {
	chunks [][]byte
}

func (r *chunkedReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	if n < len(r.chunks[0]) {
		r.chunks[0] = r.chunks[0][n:]
	} else {
		r.chunks = r.chunks[1:]
	}
	return n, nil
}

func (r *chunkedReader) Close() error { return nil }

func collect(t *testing.T, chunks [][]byte) ([]byte, []ledger.UsageSnapshot) {
	t.Helper()

	var commits []ledger.UsageSnapshot
	ex := New(&chunkedReader{chunks: chunks}, func(u ledger.UsageSnapshot) {
		commits = append(commits, u)
	})

	out, err := io.ReadAll(ex)
	require.NoError(t, err)
	require.NoError(t, ex.Close())
	return out, commits
}

func TestExtractorPassThroughAndCommit(t *testing.T) {
	stream := []byte("event: message_start\n" +
		`data: {"type":"message_start","message":{"id":"msg_1","usage":{"input_tokens":42}}}` + "\n\n" +
		"event: content_block_delta\n" +
		`data: {"type":"content_block_delta","delta":{"text":"hello"}}` + "\n\n" +
		"event: message_delta\n" +
		`data: {"type":"message_delta","usage":{"output_tokens":7}}` + "\n\n" +
		"event: message_stop\n" +
		`data: {"type":"message_stop"}` + "\n\n")

	out, commits := collect(t, [][]byte{stream})

	assert.True(t, bytes.Equal(stream, out), "client must receive the byte-identical stream")
	require.Len(t, commits, 1, "exactly one commit on the terminal event")
	assert.Equal(t, ledger.UsageSnapshot{
		MessageID:    "msg_1",
		InputTokens:  42,
		OutputTokens: 7,
	}, commits[0])
}

func TestExtractorSplitMidLine(t *testing.T) {
	full := `data: {"type":"message_start","message":{"id":"msg_split","usage":{"input_tokens":99}}}` + "\n" +
		`data: {"type":"message_delta","usage":{"output_tokens":3}}` + "\n" +
		`data: {"type":"message_stop"}` + "\n"

	// Split exactly in the middle of the first JSON payload, then fragment
	// the rest byte-by-byte.
	cut := len(full) / 3
	chunks := [][]byte{[]byte(full[:cut])}
	for i := cut; i < len(full); i++ {
		chunks = append(chunks, []byte{full[i]})
	}

	out, commits := collect(t, chunks)

	assert.Equal(t, full, string(out))
	require.Len(t, commits, 1)
	assert.Equal(t, ledger.UsageSnapshot{
		MessageID:    "msg_split",
		InputTokens:  99,
		OutputTokens: 3,
	}, commits[0])
}

func TestExtractorNoTerminalEvent(t *testing.T) {
	stream := []byte(`data: {"type":"message_start","message":{"id":"msg_trunc","usage":{"input_tokens":5}}}` + "\n")

	out, commits := collect(t, [][]byte{stream})

	assert.Equal(t, stream, out)
	assert.Empty(t, commits, "no terminal event means no commit")
}

func TestExtractorTerminalWithoutTrailingNewline(t *testing.T) {
	stream := []byte(`data: {"type":"message_start","message":{"id":"m","usage":{"input_tokens":1}}}` + "\n" +
		`data: {"type":"message_stop"}`) // stream truncated right at EOF

	_, commits := collect(t, [][]byte{stream})
	require.Len(t, commits, 1)
	assert.Equal(t, "m", commits[0].MessageID)
}

func TestExtractorMalformedPayloadsIgnored(t *testing.T) {
	stream := []byte("data: {not json}\n" +
		"data:\n" +
		": keepalive comment\n" +
		`data: {"type":"something_new","foo":1}` + "\n" +
		`data: {"type":"message_delta","usage":{"output_tokens":11}}` + "\n" +
		`data: {"type":"message_stop"}` + "\n")

	out, commits := collect(t, [][]byte{stream})

	assert.Equal(t, stream, out)
	require.Len(t, commits, 1)
	assert.Equal(t, 11, commits[0].OutputTokens)
}

func TestExtractorOversizedLineDroppedAndResynced(t *testing.T) {
	// A newline-free body labeled as an event stream must not grow the
	// partial buffer without bound. The oversized run arrives in two pieces
	// so the drop happens mid-line; scanning picks back up after the next
	// newline and later events still commit.
	head := bytes.Repeat([]byte("x"), maxPartialLine+10)
	tail := []byte("xxxx\n" +
		`data: {"type":"message_delta","usage":{"output_tokens":6}}` + "\n" +
		`data: {"type":"message_stop"}` + "\n")

	out, commits := collect(t, [][]byte{head, tail})

	want := append(append([]byte{}, head...), tail...)
	assert.True(t, bytes.Equal(want, out), "pass-through is unaffected by the dropped line")
	require.Len(t, commits, 1, "scanning resumes at the next newline")
	assert.Equal(t, 6, commits[0].OutputTokens)
}

func TestExtractorCommitsOnlyOnce(t *testing.T) {
	stream := []byte(`data: {"type":"message_stop"}` + "\n" +
		`data: {"type":"message_stop"}` + "\n")

	_, commits := collect(t, [][]byte{stream})
	assert.Len(t, commits, 1)
}

func TestExtractorCRLFLines(t *testing.T) {
	stream := []byte(`data: {"type":"message_delta","usage":{"output_tokens":4}}` + "\r\n" +
		`data: {"type":"message_stop"}` + "\r\n")

	out, commits := collect(t, [][]byte{stream})

	assert.Equal(t, stream, out)
	require.Len(t, commits, 1)
	assert.Equal(t, 4, commits[0].OutputTokens)
}

func TestParseEventKinds(t *testing.T) {
	tests := []struct {
		name string
		data string
		want Event
	}{
		{
			name: "message start",
			data: `{"type":"message_start","message":{"id":"msg_1","usage":{"input_tokens":42}}}`,
			want: Event{Kind: KindMessageStart, MessageID: "msg_1", InputTokens: 42},
		},
		{
			name: "usage delta",
			data: `{"type":"message_delta","usage":{"output_tokens":7}}`,
			want: Event{Kind: KindUsageDelta, OutputTokens: 7},
		},
		{
			name: "terminal",
			data: `{"type":"message_stop"}`,
			want: Event{Kind: KindTerminal},
		},
		{
			name: "unrecognized",
			data: `{"type":"ping"}`,
			want: Event{Kind: KindUnrecognized},
		},
		{
			name: "malformed",
			data: `{`,
			want: Event{Kind: KindUnrecognized},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, parseEvent([]byte(tc.data)))
		})
	}
}
