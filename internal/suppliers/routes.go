package suppliers

import "github.com/go-chi/chi/v5"

func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/invite/verify", h.VerifyInvite)
	r.Route("/registrations", func(r chi.Router) {
		r.Post("/login", h.CreateLogin)
		r.Post("/{mode}", h.Register)
	})
	r.Post("/session", h.Login)
	r.Get("/me", h.Me)
	r.Patch("/me", h.EditProfile)
	r.Route("/admin/suppliers", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/export.csv", h.Export)
		r.Get("/{id}", h.Show)
		r.Get("/{id}/assessment", h.Assessment)
		r.Post("/{id}/accept-invite", h.AcceptInvite)
	})
}
