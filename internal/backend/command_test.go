package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/veranemoloko/fetchd/internal/domain"
)

func TestBuildInvocation_Direct(t *testing.T) {
	job := &domain.Job{
		ID:       "j1",
		URL:      "https://files.host/archive.zip",
		Filename: "archive.zip",
		Backend:  domain.BackendDirect,
		Config: domain.TransferConfig{
			UserAgent: "agent/1.0",
			Referer:   "https://files.host/",
			Cookie:    "session=abc",
		},
	}

	inv := BuildInvocation(job, LaunchOptions{DownloadDir: "/data"})

	assert.Equal(t, "aria2c", inv.Bin)
	assert.Contains(t, inv.Args, "-d")
	assert.Contains(t, inv.Args, "/data")
	assert.Contains(t, inv.Args, "archive.zip")
	assert.Contains(t, inv.Args, "-x")
	assert.Contains(t, inv.Args, "8")
	assert.Contains(t, inv.Args, "--user-agent=agent/1.0")
	assert.Contains(t, inv.Args, "--referer=https://files.host/")
	assert.Contains(t, inv.Args, "--header=Cookie: session=abc")
	assert.NotContains(t, inv.Args, "--check-certificate=false")
	assert.Equal(t, job.URL, inv.Args[len(inv.Args)-1])
}

func TestBuildInvocation_DirectSingleConnectionOnRetry(t *testing.T) {
	job := &domain.Job{
		URL:      "https://files.host/archive.zip",
		Filename: "archive.zip",
		Backend:  domain.BackendDirect,
		Config:   domain.TransferConfig{Connections: 4},
	}

	inv := BuildInvocation(job, LaunchOptions{DownloadDir: "/data", SingleConnection: true})

	assert.Contains(t, inv.Args, "-x")
	assert.Contains(t, inv.Args, "1")
	assert.NotContains(t, inv.Args, "4")
}

func TestBuildInvocation_DirectConnectionsHint(t *testing.T) {
	job := &domain.Job{
		URL:      "https://files.host/archive.zip",
		Filename: "archive.zip",
		Backend:  domain.BackendDirect,
		Config:   domain.TransferConfig{Connections: 4},
	}

	inv := BuildInvocation(job, LaunchOptions{DownloadDir: "/data"})

	assert.Contains(t, inv.Args, "4")
	assert.NotContains(t, inv.Args, "8")
}

func TestBuildInvocation_Video(t *testing.T) {
	job := &domain.Job{
		URL:      "https://www.youtube.com/watch?v=abc",
		Filename: "clip.mp4",
		Backend:  domain.BackendVideo,
		Config: domain.TransferConfig{
			Format:      "bestvideo+bestaudio",
			InsecureTLS: true,
		},
	}

	inv := BuildInvocation(job, LaunchOptions{DownloadDir: "/data"})

	assert.Equal(t, "yt-dlp", inv.Bin)
	assert.Contains(t, inv.Args, "--newline")
	assert.Contains(t, inv.Args, "bestvideo+bestaudio")
	assert.Contains(t, inv.Args, "--concurrent-fragments")
	assert.Contains(t, inv.Args, "--no-check-certificates")
	assert.Contains(t, inv.Args, "/data/clip.mp4")
	assert.Equal(t, job.URL, inv.Args[len(inv.Args)-1])
}

func TestBuildInvocation_VideoDefaultFormat(t *testing.T) {
	job := &domain.Job{
		URL:      "https://youtu.be/abc",
		Filename: "clip.mp4",
		Backend:  domain.BackendVideo,
	}

	inv := BuildInvocation(job, LaunchOptions{DownloadDir: "/data"})

	assert.Contains(t, inv.Args, "best")
}

func TestBuildInvocation_Stream(t *testing.T) {
	job := &domain.Job{
		URL:      "https://cdn.host/live/stream.m3u8",
		Filename: "stream.mp4",
		Backend:  domain.BackendStream,
		Config:   domain.TransferConfig{UserAgent: "agent/1.0"},
	}

	inv := BuildInvocation(job, LaunchOptions{DownloadDir: "/data"})

	assert.Equal(t, "ffmpeg", inv.Bin)
	assert.Contains(t, inv.Args, "-user_agent")
	assert.Contains(t, inv.Args, "-i")
	assert.Contains(t, inv.Args, job.URL)
	assert.Equal(t, "/data/stream.mp4", inv.Args[len(inv.Args)-1])
}

func TestBuildInvocation_Torrent(t *testing.T) {
	job := &domain.Job{
		URL:     "magnet:?xt=urn:btih:deadbeef",
		Backend: domain.BackendTorrent,
	}

	inv := BuildInvocation(job, LaunchOptions{DownloadDir: "/data"})

	assert.Equal(t, "aria2c", inv.Bin)
	assert.Contains(t, inv.Args, "--seed-time=0")
	assert.Equal(t, job.URL, inv.Args[len(inv.Args)-1])
}
