package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"

	"ticket-market/internal/services"
	"ticket-market/internal/store"
)

type TicketHandler struct {
	inventory *services.Inventory
}

func NewTicketHandler(inventory *services.Inventory) *TicketHandler {
	return &TicketHandler{inventory: inventory}
}

type createTicketRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Venue       string          `json:"venue"`
	EventDate   time.Time       `json:"eventDate"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
}

// Create - list tickets for sale
func (h *TicketHandler) Create(e *core.RequestEvent) error {
	sellerID, err := requireAuth(e)
	if err != nil {
		return err
	}

	var req createTicketRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	ticket, err := h.inventory.Create(e.Request.Context(), services.CreateTicketParams{
		SellerID:    sellerID,
		Title:       req.Title,
		Description: req.Description,
		Venue:       req.Venue,
		EventDate:   req.EventDate,
		Price:       req.Price,
		Quantity:    req.Quantity,
	})
	if err != nil {
		return apiError(e, err)
	}

	return e.JSON(http.StatusOK, ticket)
}

// List - browse listings; filters: search, sellerId, mine, limit
func (h *TicketHandler) List(e *core.RequestEvent) error {
	query := e.Request.URL.Query()

	filter := store.TicketFilter{
		SellerID: query.Get("sellerId"),
		Search:   query.Get("search"),
	}
	filter.Limit, _ = strconv.Atoi(query.Get("limit"))

	if mine, _ := strconv.ParseBool(query.Get("mine")); mine {
		userID, err := requireAuth(e)
		if err != nil {
			return err
		}
		filter.SellerID = userID
	}

	tickets, err := h.inventory.List(e.Request.Context(), filter)
	if err != nil {
		return apiError(e, err)
	}

	return e.JSON(http.StatusOK, tickets)
}

// Get - single listing
func (h *TicketHandler) Get(e *core.RequestEvent) error {
	ticket, err := h.inventory.Get(e.Request.Context(), e.Request.PathValue("id"))
	if err != nil {
		return apiError(e, err)
	}

	return e.JSON(http.StatusOK, ticket)
}

type updateTicketRequest struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Venue       string           `json:"venue"`
	EventDate   time.Time        `json:"eventDate"`
	Price       *decimal.Decimal `json:"price"`
	Quantity    int              `json:"quantity"`
}

// Update - seller edits a listing; price is frozen
func (h *TicketHandler) Update(e *core.RequestEvent) error {
	sellerID, err := requireAuth(e)
	if err != nil {
		return err
	}

	var req updateTicketRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	ticket, err := h.inventory.Update(e.Request.Context(), services.UpdateTicketParams{
		TicketID:    e.Request.PathValue("id"),
		SellerID:    sellerID,
		Title:       req.Title,
		Description: req.Description,
		Venue:       req.Venue,
		EventDate:   req.EventDate,
		Price:       req.Price,
		Quantity:    req.Quantity,
	})
	if err != nil {
		return apiError(e, err)
	}

	return e.JSON(http.StatusOK, ticket)
}

// Delete - seller removes a listing without orders
func (h *TicketHandler) Delete(e *core.RequestEvent) error {
	sellerID, err := requireAuth(e)
	if err != nil {
		return err
	}

	if err := h.inventory.Delete(e.Request.Context(), e.Request.PathValue("id"), sellerID); err != nil {
		return apiError(e, err)
	}

	return e.NoContent(http.StatusNoContent)
}
