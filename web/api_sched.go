package web

import (
	"github.com/aistock/tdxdata/orm"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

func (s *Server) regSched(api fiber.Router) {
	api.Get("/", s.onListSchedules)
	api.Post("/", s.onSaveSchedule)
	api.Post("/:id/toggle", s.onToggleSchedule)
	api.Post("/:id/run", s.onRunSchedule)
	api.Delete("/:id", s.onDeleteSchedule)
}

func parseScheduleID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "bad schedule id")
	}
	return id, nil
}

func (s *Server) onListSchedules(c *fiber.Ctx) error {
	q, conn, err := orm.Conn(c.Context())
	if err != nil {
		return err
	}
	defer conn.Release()
	items, err := q.ListSchedules(c.Context(), false)
	if err != nil {
		return err
	}
	return c.JSON(items)
}

func (s *Server) onSaveSchedule(c *fiber.Ctx) error {
	type SaveArgs struct {
		Dataset   string                 `json:"dataset" validate:"required"`
		Mode      string                 `json:"mode" validate:"required,oneof=init incremental"`
		Frequency string                 `json:"frequency" validate:"required"`
		Enabled   *bool                  `json:"enabled"`
		Options   map[string]interface{} `json:"options"`
	}
	var args = new(SaveArgs)
	if err := VerifyArg(c, args, ArgBody); err != nil {
		return err
	}
	enabled := true
	if args.Enabled != nil {
		enabled = *args.Enabled
	}
	id, err := s.schd.Add(c.Context(), args.Dataset, args.Mode, args.Frequency, enabled, args.Options)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"schedule_id": id.String()})
}

func (s *Server) onToggleSchedule(c *fiber.Ctx) error {
	id, err := parseScheduleID(c)
	if err != nil {
		return err
	}
	type ToggleArgs struct {
		Enabled bool `json:"enabled"`
	}
	var args = new(ToggleArgs)
	if err := VerifyArg(c, args, ArgBody); err != nil {
		return err
	}
	q, conn, err2 := orm.Conn(c.Context())
	if err2 != nil {
		return err2
	}
	defer conn.Release()
	if err2 = q.SetScheduleEnabled(c.Context(), id, args.Enabled); err2 != nil {
		return err2
	}
	return c.JSON(fiber.Map{"ok": true})
}

// onRunSchedule run-now绕过到期检查，但仍走编排器同一路径
func (s *Server) onRunSchedule(c *fiber.Ctx) error {
	id, err := parseScheduleID(c)
	if err != nil {
		return err
	}
	if err2 := s.schd.Trigger(c.Context(), id); err2 != nil {
		return err2
	}
	return c.JSON(fiber.Map{"ok": true})
}

func (s *Server) onDeleteSchedule(c *fiber.Ctx) error {
	id, err := parseScheduleID(c)
	if err != nil {
		return err
	}
	q, conn, err2 := orm.Conn(c.Context())
	if err2 != nil {
		return err2
	}
	defer conn.Release()
	if err2 = q.DeleteSchedule(c.Context(), id); err2 != nil {
		return err2
	}
	return c.JSON(fiber.Map{"ok": true})
}
