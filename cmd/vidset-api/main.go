package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"

	"github.com/ryanjyoder/vidset"
)

// Read-only status API over the vidset working directories. Nothing here
// writes, downloads or deletes.
type Server struct {
	cfg vidset.Config
}

func main() {
	addr := pflag.String("addr", ":7770", "listen address")
	configPath := pflag.String("config", "", "directory containing vidset.yaml")
	pflag.Parse()

	cfg, err := vidset.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error loading config:", err)
		os.Exit(1)
	}

	s := &Server{cfg: cfg}

	r := gin.Default()
	v1 := r.Group("/v1")

	v1.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	v1.GET("/summary", s.GetSummary)
	v1.GET("/links", s.ListLinks)
	v1.GET("/downloads", s.ListDownloads)

	r.Run(*addr)
}

func (s *Server) GetSummary(c *gin.Context) {
	summary, err := vidset.Summarize(s.cfg)
	if err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}
	c.JSON(200, summary)
}

func (s *Server) ListLinks(c *gin.Context) {
	links, err := vidset.LoadLinks(s.cfg.LinksFile)
	if err != nil {
		// no mapping yet is not an error for a status endpoint
		c.JSON(200, gin.H{})
		return
	}
	c.JSON(200, links)
}

func (s *Server) ListDownloads(c *gin.Context) {
	files := map[string]int64{}
	entries, err := os.ReadDir(s.cfg.DownloadsDir)
	if err != nil {
		c.JSON(200, files)
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) == ".partial" {
			continue
		}
		if info, err := entry.Info(); err == nil {
			files[entry.Name()] = info.Size()
		}
	}
	c.JSON(200, files)
}
