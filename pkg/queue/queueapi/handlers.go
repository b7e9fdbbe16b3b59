package queueapi

import (
	"encoding/json"
	"strings"

	"github.com/Abraxas-365/workq/pkg/queue"
	"github.com/gofiber/fiber/v2"
)

// Handlers expose the producer-facing queue operations over HTTP. Every
// route is scoped to a (system, queue) pair registered on the manager.
type Handlers struct {
	manager *queue.Manager
}

func NewHandlers(manager *queue.Manager) *Handlers {
	return &Handlers{manager: manager}
}

// SubmitResponse is returned by POST .../jobs.
type SubmitResponse struct {
	JobID string `json:"jobid"`
}

// RegisterRoutes mounts the queue routes on router.
func (h *Handlers) RegisterRoutes(router fiber.Router) {
	g := router.Group("/:system/queues/:queue")
	g.Post("/jobs", h.Submit)
	g.Get("/jobs", h.List)
	g.Get("/jobs/:jobid", h.Job)
	g.Delete("/jobs/:jobid", h.Cancel)
	g.Get("/jobs/:jobid/status", h.Status)
	g.Get("/workers", h.Workers)
	g.Delete("/workers/:workerid", h.DeleteWorker)
}

func (h *Handlers) queue(c *fiber.Ctx) (*queue.Queue, error) {
	return h.manager.Get(c.Params("system"), c.Params("queue"))
}

// Submit accepts a JSON job document, or a form field named job holding one.
func (h *Handlers) Submit(c *fiber.Ctx) error {
	q, err := h.queue(c)
	if err != nil {
		return err
	}

	var job queue.Job
	body := c.Body()
	if form := c.FormValue("job"); form != "" {
		body = []byte(form)
	}
	if err := json.Unmarshal(body, &job); err != nil {
		return apiErrors.NewWithCause(ErrBadBody, err)
	}

	jobid, err := q.Push(c.UserContext(), job)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(SubmitResponse{JobID: jobid})
}

// List supports ?status=SUCCESS,FAILED and ?fields=metadata,output.
func (h *Handlers) List(c *fiber.Ctx) error {
	q, err := h.queue(c)
	if err != nil {
		return err
	}

	states, err := queue.ParseStates(c.Query("status"))
	if err != nil {
		return apiErrors.NewWithCause(ErrBadFilter, err).WithDetail("status", c.Query("status"))
	}
	var fields []string
	for _, f := range strings.Split(c.Query("fields"), ",") {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}

	jobs, err := q.List(c.UserContext(), states, fields)
	if err != nil {
		return err
	}
	return c.JSON(jobs)
}

func (h *Handlers) Job(c *fiber.Ctx) error {
	q, err := h.queue(c)
	if err != nil {
		return err
	}
	job, err := q.Job(c.UserContext(), c.Params("jobid"))
	if err != nil {
		return err
	}
	return c.JSON(job)
}

// Cancel returns the deleted document.
func (h *Handlers) Cancel(c *fiber.Ctx) error {
	q, err := h.queue(c)
	if err != nil {
		return err
	}
	job, err := q.Cancel(c.UserContext(), c.Params("jobid"))
	if err != nil {
		return err
	}
	return c.JSON(job)
}

func (h *Handlers) Status(c *fiber.Ctx) error {
	q, err := h.queue(c)
	if err != nil {
		return err
	}
	st, err := q.Status(c.UserContext(), c.Params("jobid"))
	if err != nil {
		return err
	}
	return c.JSON(st)
}

func (h *Handlers) Workers(c *fiber.Ctx) error {
	q, err := h.queue(c)
	if err != nil {
		return err
	}
	reports, err := q.Workers(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(reports)
}

// DeleteWorker removes bookkeeping only; it cannot stop a live process.
func (h *Handlers) DeleteWorker(c *fiber.Ctx) error {
	q, err := h.queue(c)
	if err != nil {
		return err
	}
	report, err := q.DeleteWorker(c.UserContext(), c.Params("workerid"))
	if err != nil {
		return err
	}
	return c.JSON(report)
}
