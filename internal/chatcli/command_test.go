package chatcli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChatCmd(t *testing.T) {
	cmd := NewChatCmd()
	assert.Equal(t, "ilmigreen-chat [question]", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	for _, name := range []string{"server", "conversation", "render", "verbose"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "flag %s", name)
	}
}

func TestChatCmdOneShot(t *testing.T) {
	srv := (&fakeServer{frames: []string{delta("Pilah "), delta("sampahmu!"), "data: [DONE]\n\n"}}).start(t)

	cmd := NewChatCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--server", srv.URL, "--render=false", "apa", "tipsnya?"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "Pilah sampahmu!\n", out.String())
}

func TestChatCmdREPL(t *testing.T) {
	srv := (&fakeServer{frames: []string{delta("Oke"), "data: [DONE]\n\n"}}).start(t)

	cmd := NewChatCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader("hai\n\n/exit\nignored\n"))
	cmd.SetArgs([]string{"--server", srv.URL, "--render=false"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, 1, strings.Count(out.String(), "Oke\n"))
}

func TestChatCmdRenderMarkdown(t *testing.T) {
	srv := (&fakeServer{frames: []string{delta("**Kompos** sisa makanan"), "data: [DONE]\n\n"}}).start(t)

	cmd := NewChatCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--server", srv.URL, "--render", "kompos?"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "Kompos")
	assert.Contains(t, out.String(), "sisa makanan")
}

func TestChatCmdRejected(t *testing.T) {
	srv := (&fakeServer{status: 429}).start(t)

	cmd := NewChatCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--server", srv.URL, "--render=false", "hai"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "busy")
}

func TestChatCmdReportsMidStreamFailure(t *testing.T) {
	srv := (&fakeServer{frames: []string{
		delta("Sebagian"),
		"event: error\ndata: {\"error\":\"gagal\"}\n\n",
	}}).start(t)

	cmd := NewChatCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--server", srv.URL, "--render=false", "hai"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gagal")
	assert.Contains(t, out.String(), "Sebagian")
}
