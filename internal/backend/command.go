package backend

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/veranemoloko/fetchd/internal/domain"
)

// defaultConnections is the segment count for first-attempt direct
// downloads. Video platforms and retries always run single-connection
// because segmented transfer against throttling hosts raises the failure
// rate.
const defaultConnections = 8

// Invocation is the concrete external command built for a job.
type Invocation struct {
	Bin  string
	Args []string
}

// LaunchOptions adjust the invocation per attempt.
type LaunchOptions struct {
	DownloadDir string
	// SingleConnection forces one segment/connection, set for retries.
	SingleConnection bool
}

// BuildInvocation constructs the worker command for the job's backend.
func BuildInvocation(job *domain.Job, opts LaunchOptions) Invocation {
	switch job.Backend {
	case domain.BackendVideo:
		return ytdlpInvocation(job, opts)
	case domain.BackendStream:
		return ffmpegInvocation(job, opts)
	case domain.BackendTorrent:
		return torrentInvocation(job, opts)
	default:
		return aria2Invocation(job, opts)
	}
}

func (o LaunchOptions) connections(cfg domain.TransferConfig) int {
	if o.SingleConnection {
		return 1
	}
	if cfg.Connections > 0 {
		return cfg.Connections
	}
	return defaultConnections
}

func aria2Invocation(job *domain.Job, opts LaunchOptions) Invocation {
	n := opts.connections(job.Config)
	args := []string{
		"-d", opts.DownloadDir,
		"-o", job.Filename,
		"--allow-overwrite=true",
		"--auto-file-renaming=false",
		"--summary-interval=1",
		"--console-log-level=warn",
		"-x", strconv.Itoa(n),
		"-s", strconv.Itoa(n),
	}
	if job.Config.UserAgent != "" {
		args = append(args, "--user-agent="+job.Config.UserAgent)
	}
	if job.Config.Referer != "" {
		args = append(args, "--referer="+job.Config.Referer)
	}
	if job.Config.Cookie != "" {
		args = append(args, "--header=Cookie: "+job.Config.Cookie)
	}
	if job.Config.InsecureTLS {
		args = append(args, "--check-certificate=false")
	}
	args = append(args, job.URL)
	return Invocation{Bin: "aria2c", Args: args}
}

func ytdlpInvocation(job *domain.Job, opts LaunchOptions) Invocation {
	format := job.Config.Format
	if format == "" {
		format = "best"
	}
	args := []string{
		"--newline",
		"--no-playlist",
		"--concurrent-fragments", "1",
		"-f", format,
		"-o", filepath.Join(opts.DownloadDir, job.Filename),
	}
	if job.Config.UserAgent != "" {
		args = append(args, "--user-agent", job.Config.UserAgent)
	}
	if job.Config.Referer != "" {
		args = append(args, "--referer", job.Config.Referer)
	}
	if job.Config.Cookie != "" {
		args = append(args, "--add-header", "Cookie:"+job.Config.Cookie)
	}
	if job.Config.InsecureTLS {
		args = append(args, "--no-check-certificates")
	}
	args = append(args, job.URL)
	return Invocation{Bin: "yt-dlp", Args: args}
}

func ffmpegInvocation(job *domain.Job, opts LaunchOptions) Invocation {
	args := []string{"-y", "-nostdin", "-loglevel", "info", "-stats"}
	if job.Config.UserAgent != "" {
		args = append(args, "-user_agent", job.Config.UserAgent)
	}
	if job.Config.Referer != "" {
		args = append(args, "-referer", job.Config.Referer)
	}
	if job.Config.Cookie != "" {
		args = append(args, "-headers", fmt.Sprintf("Cookie: %s\r\n", job.Config.Cookie))
	}
	args = append(args,
		"-i", job.URL,
		"-c", "copy",
		filepath.Join(opts.DownloadDir, job.Filename),
	)
	return Invocation{Bin: "ffmpeg", Args: args}
}

func torrentInvocation(job *domain.Job, opts LaunchOptions) Invocation {
	args := []string{
		"-d", opts.DownloadDir,
		"--seed-time=0",
		"--summary-interval=1",
		"--console-log-level=warn",
		job.URL,
	}
	return Invocation{Bin: "aria2c", Args: args}
}
