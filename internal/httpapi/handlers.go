package httpapi

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"tradejournal/internal/domain"
)

// --- Trades ---

func (s *Server) listTrades(c *gin.Context) {
	trades, err := s.svc.ListTrades(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades})
}

func (s *Server) getTrade(c *gin.Context) {
	trade, err := s.svc.GetTrade(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, trade)
}

func (s *Server) createTrade(c *gin.Context) {
	var trade domain.Trade
	if err := c.ShouldBindJSON(&trade); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	created, err := s.svc.CreateTrade(c.Request.Context(), &trade)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) updateTrade(c *gin.Context) {
	var trade domain.Trade
	if err := c.ShouldBindJSON(&trade); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	updated, err := s.svc.UpdateTrade(c.Request.Context(), c.Param("id"), &trade)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *Server) deleteTrade(c *gin.Context) {
	if err := s.svc.DeleteTrade(c.Request.Context(), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) getTradeQuote(c *gin.Context) {
	price, err := s.svc.GetTradeQuote(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lastPrice": price})
}

// --- Pyramids ---

func (s *Server) addPyramid(c *gin.Context) {
	var pyramid domain.Pyramid
	if err := c.ShouldBindJSON(&pyramid); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	trade, err := s.svc.AddPyramid(c.Request.Context(), c.Param("id"), pyramid)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, trade)
}

func (s *Server) updatePyramid(c *gin.Context) {
	var pyramid domain.Pyramid
	if err := c.ShouldBindJSON(&pyramid); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	trade, err := s.svc.UpdatePyramid(c.Request.Context(), c.Param("id"), c.Param("pid"), pyramid)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, trade)
}

func (s *Server) deletePyramid(c *gin.Context) {
	trade, err := s.svc.DeletePyramid(c.Request.Context(), c.Param("id"), c.Param("pid"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, trade)
}

// --- Exits ---

func (s *Server) addExit(c *gin.Context) {
	var exit domain.ExitRecord
	if err := c.ShouldBindJSON(&exit); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	trade, err := s.svc.AddExit(c.Request.Context(), c.Param("id"), exit)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, trade)
}

func (s *Server) updateExit(c *gin.Context) {
	var exit domain.ExitRecord
	if err := c.ShouldBindJSON(&exit); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	trade, err := s.svc.UpdateExit(c.Request.Context(), c.Param("id"), c.Param("eid"), exit)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, trade)
}

func (s *Server) deleteExit(c *gin.Context) {
	trade, err := s.svc.DeleteExit(c.Request.Context(), c.Param("id"), c.Param("eid"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, trade)
}

// --- Stop-loss adjustments ---

func (s *Server) addStopLossAdjustment(c *gin.Context) {
	var adj domain.StopLossAdjustment
	if err := c.ShouldBindJSON(&adj); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	trade, err := s.svc.AddStopLossAdjustment(c.Request.Context(), c.Param("id"), adj)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, trade)
}

func (s *Server) deleteStopLossAdjustment(c *gin.Context) {
	trade, err := s.svc.DeleteStopLossAdjustment(c.Request.Context(), c.Param("id"), c.Param("aid"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, trade)
}

// --- Imports ---

type importRequest struct {
	CSVText  string `json:"csvText"`
	FileName string `json:"fileName"`
}

func (s *Server) importZerodha(c *gin.Context) {
	s.importTradebook(c, domain.SourceZerodha)
}

func (s *Server) importDhan(c *gin.Context) {
	s.importTradebook(c, domain.SourceDhan)
}

// importTradebook accepts either a JSON body with csvText or the raw
// tradebook as text/csv.
func (s *Server) importTradebook(c *gin.Context, source domain.ImportSource) {
	var req importRequest
	if c.ContentType() == "application/json" {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
			return
		}
	} else {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
			return
		}
		req.CSVText = string(body)
	}

	result, err := s.svc.ImportTradebook(c.Request.Context(), source, req.CSVText, req.FileName)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (s *Server) listImports(c *gin.Context) {
	batches, err := s.svc.ListImports(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"imports": batches})
}

func (s *Server) getImport(c *gin.Context) {
	batch, err := s.svc.GetImport(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, batch)
}

func (s *Server) deleteImport(c *gin.Context) {
	deleted, err := s.svc.DeleteImport(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deletedTrades": deleted})
}

// --- Dashboard ---

func (s *Server) getDashboard(c *gin.Context) {
	dash, err := s.svc.GetDashboard(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dash)
}

// --- Settings ---

func (s *Server) getSettings(c *gin.Context) {
	settings, err := s.svc.GetSettings(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (s *Server) saveSettings(c *gin.Context) {
	var raw domain.RawSettings
	if err := c.ShouldBindJSON(&raw); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	settings, err := s.svc.SaveSettings(c.Request.Context(), raw)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}
