package rest

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/KevinKickass/PackStationCore/internal/command"
	"github.com/KevinKickass/PackStationCore/internal/packml"
	"github.com/KevinKickass/PackStationCore/internal/station"
	"github.com/KevinKickass/PackStationCore/internal/types"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// commandRequest mirrors the embedded command-request schema.
type commandRequest struct {
	ID            string         `json:"id"`
	DurationMs    int64          `json:"duration_ms"`
	MaxDurationMs int64          `json:"max_duration_ms"`
	Parameters    map[string]any `json:"parameters"`
}

func (s *Server) stationOr404(c *gin.Context) (*station.Controller, bool) {
	ctrl, ok := s.stations.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, types.NewErrorResponse("STATION_404", "Station not found", c.Param("id")))
		return nil, false
	}
	return ctrl, true
}

// GET /api/v1/stations
func (s *Server) listStations(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"stations": s.stations.List()})
}

// GET /api/v1/stations/:id/status
func (s *Server) getStationStatus(c *gin.Context) {
	ctrl, ok := s.stationOr404(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, ctrl.Status())
}

// GET /api/v1/stations/:id/queue
func (s *Server) getStationQueue(c *gin.Context) {
	ctrl, ok := s.stationOr404(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"active": ctrl.Queue().Active(),
		"queued": ctrl.Queue().Pending(),
	})
}

// GET /api/v1/stations/:id/history
func (s *Server) getStationHistory(c *gin.Context) {
	ctrl, ok := s.stationOr404(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	records, err := ctrl.History(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse("STATION_500", "Failed to load history", err.Error()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": records})
}

// POST /api/v1/stations/:id/commands
func (s *Server) enqueueCommand(c *gin.Context) {
	ctrl, ok := s.stationOr404(c)
	if !ok {
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("COMMAND_400", "Failed to read request body", err.Error()))
		return
	}

	if err := s.validator.ValidateRequest(body); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("COMMAND_400", "Invalid command request", err.Error()))
		return
	}

	var req commandRequest
	if err := json.Unmarshal(body, &req); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("COMMAND_400", "Invalid request body", err.Error()))
		return
	}

	cmd := command.New(req.ID,
		time.Duration(req.DurationMs)*time.Millisecond,
		time.Duration(req.MaxDurationMs)*time.Millisecond,
		req.Parameters)

	added := ctrl.Enqueue(cmd)
	if !added {
		// Enqueue is idempotent on duplicate identifiers.
		c.JSON(http.StatusOK, gin.H{
			"message":    "Command already registered",
			"command_id": cmd.ID,
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message":    "Command accepted",
		"command_id": cmd.ID,
	})
}

// DELETE /api/v1/stations/:id/commands/:cmd
func (s *Server) unregisterCommand(c *gin.Context) {
	ctrl, ok := s.stationOr404(c)
	if !ok {
		return
	}

	commandID := c.Param("cmd")
	removed, active := ctrl.Unregister(commandID)
	if active {
		c.JSON(http.StatusConflict, types.NewErrorResponse("COMMAND_409",
			"Command is active and cannot be removed", commandID))
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, types.NewErrorResponse("COMMAND_404", "Command not found", commandID))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "Command removed",
		"command_id": commandID,
	})
}

// POST /api/v1/stations/:id/signal
func (s *Server) signalStation(c *gin.Context) {
	ctrl, ok := s.stationOr404(c)
	if !ok {
		return
	}

	var req struct {
		Signal string `json:"signal" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("SIGNAL_400", "Invalid request body", err.Error()))
		return
	}

	sig, ok := packml.ParseSignal(req.Signal)
	if !ok {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("SIGNAL_400", "Unknown signal", req.Signal))
		return
	}

	if err := ctrl.RequestSignal(sig); err != nil {
		s.logger.Warn("Signal rejected",
			zap.String("station_id", c.Param("id")),
			zap.String("signal", req.Signal),
			zap.Error(err))
		c.JSON(http.StatusConflict, types.NewErrorResponse("SIGNAL_409", "Signal rejected", err.Error()))
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message": "Signal accepted",
		"signal":  req.Signal,
	})
}
