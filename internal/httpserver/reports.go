package httpserver

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"milk-delivery/internal/domain"
	"milk-delivery/internal/service/delivery"
	"milk-delivery/internal/service/session"
)

var now = time.Now

func dateParam(c *gin.Context) string {
	if d := c.Query("date"); d != "" {
		return d
	}
	return now().Format(domain.DateLayout)
}

func shiftParam(c *gin.Context) domain.Shift {
	if s := c.Query("shift"); s != "" {
		return domain.Shift(s)
	}
	return domain.ShiftMorning
}

func (h *handlers) shiftReport(c *gin.Context) {
	s, _ := h.store(c)
	summary, err := s.ShiftSummary(dateParam(c), shiftParam(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *handlers) agentsReport(c *gin.Context) {
	s, p := h.store(c)
	summaries, err := s.AgentSummaries(dateParam(c))
	if err != nil {
		writeError(c, err)
		return
	}
	if p.Role == session.RoleAgent {
		own := summaries[:0]
		for _, sum := range summaries {
			if sum.Agent.ID == p.SubjectID {
				own = append(own, sum)
			}
		}
		summaries = own
	}
	c.JSON(http.StatusOK, gin.H{"results": summaries})
}

func (h *handlers) dailySellReport(c *gin.Context) {
	s, _ := h.store(c)
	rows, err := s.DailySell(dateParam(c), c.Query("search"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": dateParam(c), "results": rows})
}

func intParam(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a number", domain.ErrValidation, name)
	}
	return v, nil
}

func (h *handlers) billsReport(c *gin.Context) {
	today := now()
	year, err := intParam(c, "year", today.Year())
	if err != nil {
		writeError(c, err)
		return
	}
	month, err := intParam(c, "month", int(today.Month()))
	if err != nil {
		writeError(c, err)
		return
	}
	s, p := h.store(c)
	bills, err := s.MonthlyBills(year, month, c.Query("search"))
	if err != nil {
		writeError(c, err)
		return
	}
	if p.Role == session.RoleCustomer {
		own := bills.Bills[:0]
		bills.Total = decimal.Zero
		for _, b := range bills.Bills {
			if b.CustomerID == p.SubjectID {
				own = append(own, b)
				bills.Total = bills.Total.Add(b.Amount)
			}
		}
		bills.Bills = own
	}
	c.JSON(http.StatusOK, bills)
}

type bulkSellRequest struct {
	Entries []delivery.BulkEntry `json:"entries" binding:"required"`
}

func (h *handlers) bulkSell(c *gin.Context) {
	var in bulkSellRequest
	if !bindJSON(c, &in) {
		return
	}
	s, _ := h.store(c)
	sale, err := s.BulkSell(in.Entries)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sale)
}

type pickupRequest struct {
	Date   string                     `json:"date"`
	Shift  domain.Shift               `json:"shift"`
	Picked map[domain.Product]float64 `json:"picked"`
}

func (h *handlers) pickup(c *gin.Context) {
	var in pickupRequest
	if !bindJSON(c, &in) {
		return
	}
	if in.Date == "" {
		in.Date = now().Format(domain.DateLayout)
	}
	if in.Shift == "" {
		in.Shift = domain.ShiftMorning
	}
	s, _ := h.store(c)
	rows, err := s.Pickup(in.Date, in.Shift, in.Picked)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": in.Date, "shift": in.Shift, "results": rows})
}
