package frame

import (
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

const thermalZone = "/sys/class/thermal/thermal_zone0/temp"

// Status is the system report of the web interface.
type Status struct {
	Hostname     string     `json:"hostname"`
	Platform     string     `json:"platform"`
	GoVersion    string     `json:"go_version"`
	Uptime       string     `json:"uptime"`
	StartedAt    time.Time  `json:"started_at"`
	CPUTemp      *float64   `json:"cpu_temp"`
	Disk         *DiskUsage `json:"disk_usage"`
	PhotoCount   int        `json:"photo_count"`
	CurrentPhoto string     `json:"current_photo,omitempty"`
	Display      string     `json:"display"`
	FitMode      string     `json:"fit_mode"`
}

type DiskUsage struct {
	Total   string  `json:"total"`
	Used    string  `json:"used"`
	Free    string  `json:"free"`
	Percent float64 `json:"percent"`
}

func newDiskUsage(total, free uint64) *DiskUsage {
	if total == 0 {
		return nil
	}
	used := total - min(free, total)
	return &DiskUsage{
		Total:   humanize.IBytes(total),
		Used:    humanize.IBytes(used),
		Free:    humanize.IBytes(free),
		Percent: float64(used*1000/total) / 10,
	}
}

func (s *Server) systemStatus() Status {
	cfg := s.conf.Config.Get()
	st := Status{
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		GoVersion: runtime.Version(),
		Uptime:    strings.TrimSpace(humanize.RelTime(s.started, time.Now(), "", "")),
		StartedAt: s.started.UTC(),
		CPUTemp:   cpuTemp(thermalZone),
		Display:   cfg.Display.Canvas().String(),
		FitMode:   cfg.Display.FitMode.String(),
	}
	if h, err := os.Hostname(); err == nil {
		st.Hostname = h
	}
	if names, err := s.conf.Library.Names(); err == nil {
		st.PhotoCount = len(names)
	} else {
		s.conf.Logger.Warn("Failed to count photos", "error", err)
	}
	if total, free, err := diskSpace(s.conf.Library.Dir()); err == nil {
		st.Disk = newDiskUsage(total, free)
	} else {
		s.conf.Logger.Debug("Disk usage unavailable", "error", err)
	}
	if s.conf.Slideshow != nil {
		st.CurrentPhoto = s.conf.Slideshow.Current()
	}
	return st
}

// cpuTemp reads a thermal zone in millidegrees Celsius. It returns nil
// where there is none.
func cpuTemp(path string) *float64 {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	milli, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return nil
	}
	c := float64(milli) / 1000
	return &c
}
