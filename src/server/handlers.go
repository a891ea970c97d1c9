package server

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"quant-observer/src/config"
	"quant-observer/src/export"
	"quant-observer/src/helpers"
	"quant-observer/src/utils"

	"github.com/gin-gonic/gin"
)

const (
	maxQueryLimit      = 100000
	maxBins            = 1000
	maxLookbackMinutes = 7 * 24 * 60
)

// -----------------------------------------------------------------------------
// Route Handlers
// -----------------------------------------------------------------------------

func (s *APIServer) getHealth(c *gin.Context) {
	stats := s.Pipeline.Stats()

	var latest interface{}
	if ts := s.Pipeline.LastUpdate(); !ts.IsZero() {
		latest = ts.UnixMilli()
	}

	c.JSON(http.StatusOK, gin.H{
		"status":          "ok",
		"connections":     s.Connections(),
		"latest_update":   latest,
		"buffer_size":     stats.RecordsStored,
		"buffer_capacity": stats.BufferCapacity,
		"source":          stats.Source,
		"real_time":       stats.RealTime,
	})
}

// -----------------------------------------------------------------------------

func (s *APIServer) getConfig(c *gin.Context) {
	c.JSON(http.StatusOK, s.Pipeline.Config())
}

// putConfig merges the body into the current runtime config. Fields left
// out of the body keep their value.
func (s *APIServer) putConfig(c *gin.Context) {
	s.cfgMutex.Lock()
	defer s.cfgMutex.Unlock()

	cfg := s.Pipeline.Config()
	if err := c.ShouldBindJSON(&cfg); err != nil {
		respondError(c, helpers.NewValidationError("body", "invalid config payload: %v", err))
		return
	}

	if err := s.Pipeline.UpdateConfig(cfg); err != nil {
		respondError(c, err)
		return
	}

	s.Config.Pipeline = cfg
	if s.Config.PersistConfigChanges && s.ConfigPath != "" {
		if err := (&config.Config{MConfig: s.Config}).Save(s.ConfigPath); err != nil {
			s.Logger.Error("Failed to persist config change: %v", err)
		} else {
			s.Logger.Info("Config change persisted to %s", s.ConfigPath)
		}
	}

	c.JSON(http.StatusOK, cfg)
}

// -----------------------------------------------------------------------------

func (s *APIServer) getMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, s.Pipeline.CurrentMetrics())
}

func (s *APIServer) getStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.Pipeline.Stats())
}

// -----------------------------------------------------------------------------

func (s *APIServer) getLatestTicks(c *gin.Context) {
	n, err := intQuery(c, "n", utils.DefaultLatestTicks, 0, maxQueryLimit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Pipeline.LatestN(n))
}

// getTicksRange filters the buffer by inclusive RFC3339 bounds. A missing
// bound is open. minutes=N replaces start with "N minutes ago".
func (s *APIServer) getTicksRange(c *gin.Context) {
	minutes, err := intQuery(c, "minutes", 0, 0, maxLookbackMinutes)
	if err != nil {
		respondError(c, err)
		return
	}
	if minutes > 0 {
		c.JSON(http.StatusOK, s.Pipeline.History(time.Duration(minutes)*time.Minute))
		return
	}

	start, err := timeQuery(c, "start", time.Time{})
	if err != nil {
		respondError(c, err)
		return
	}
	end, err := timeQuery(c, "end", maxTime)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Pipeline.Range(start, end))
}

// getPriceRange covers the last `minutes` minutes, or the whole buffer when
// minutes is 0 or missing.
func (s *APIServer) getPriceRange(c *gin.Context) {
	minutes, err := intQuery(c, "minutes", 0, 0, maxLookbackMinutes)
	if err != nil {
		respondError(c, err)
		return
	}
	pr, err := s.Pipeline.PriceRange(time.Duration(minutes) * time.Minute)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pr)
}

// -----------------------------------------------------------------------------

func (s *APIServer) exportTicks(c *gin.Context) {
	format := c.DefaultQuery("format", "csv")
	saver := export.NewSnapshotSaver(format)
	if saver == nil {
		respondError(c, helpers.NewValidationError("format", "unsupported format %q (use %v)", format, export.Formats))
		return
	}

	var buf bytes.Buffer
	if err := saver.Save(&buf, s.Pipeline.Snapshot()); err != nil {
		s.Logger.Error("Export %s failed: %v", saver.Extension(), err)
		respondError(c, err)
		return
	}

	name := export.FileName(s.Config.DataSource.Symbol, time.Now(), saver)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, saver.ContentType(), buf.Bytes())
}

// -----------------------------------------------------------------------------

func (s *APIServer) getSeries(c *gin.Context) {
	c.JSON(http.StatusOK, s.Pipeline.Series())
}

func (s *APIServer) getReturnDistribution(c *gin.Context) {
	bins, err := intQuery(c, "bins", utils.DefaultHistogramBins, 1, maxBins)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Pipeline.ReturnDistribution(bins))
}

func (s *APIServer) getCandles(c *gin.Context) {
	candles, err := s.Pipeline.Candles(c.DefaultQuery("window", "1m"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, candles)
}

// -----------------------------------------------------------------------------

func (s *APIServer) getAlerts(c *gin.Context) {
	n, err := intQuery(c, "n", utils.DefaultRecentAlerts, 0, maxQueryLimit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Pipeline.RecentAlerts(n))
}

func (s *APIServer) clearAlerts(c *gin.Context) {
	s.Pipeline.ClearAlerts()
	s.Logger.Info("Alert log cleared via API")
	c.Status(http.StatusNoContent)
}

func (s *APIServer) getAlertStates(c *gin.Context) {
	c.JSON(http.StatusOK, s.Pipeline.AlertStates())
}
