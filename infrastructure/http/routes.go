package http

import (
	"net/http"

	adminusers "palletrack/frontend/adminUsers"
	"palletrack/frontend/comparisons"
	contractspage "palletrack/frontend/contracts"
	exportspage "palletrack/frontend/exports"
	"palletrack/frontend/help"
	"palletrack/frontend/locations"
	"palletrack/frontend/login"
	"palletrack/frontend/manifests"
	"palletrack/frontend/pallets"
	"palletrack/frontend/qrtags"
	"palletrack/frontend/receipts"
	"palletrack/frontend/settings"
	"palletrack/frontend/stock"
	"palletrack/infrastructure/rbac"

	"github.com/go-chi/chi/v5"
)

// RegisterLoginRoutes registers login/logout routes.
func (s *Server) RegisterLoginRoutes() {
	s.router.Get("/login", login.GetLoginScreenHandler)
	s.router.Post("/login", login.CreateLoginHandler(s.DB, s.SessionCache, s.UserCache))
	s.router.Post("/logout", login.LogoutHandler(s.DB, s.SessionCache))
}

// RegisterFrontendRoutes registers authenticated routes.
func (s *Server) RegisterFrontendRoutes(r chi.Router) chi.Router {
	s.RegisterContractRoutes(r)
	s.RegisterPalletRoutes(r)
	s.RegisterManifestRoutes(r)
	s.RegisterReceiptRoutes(r)
	s.RegisterComparisonRoutes(r)

	s.Rbac.Add(rbac.RoleAdmin, "HELP_VIEW", http.MethodGet, "/depot/help")
	s.Rbac.Add(rbac.RoleOperator, "HELP_VIEW", http.MethodGet, "/depot/help")
	s.Rbac.Add(rbac.RoleClient, "HELP_VIEW", http.MethodGet, "/depot/help")
	r.Get("/help", help.HelpPageQueryHandler())

	return r
}

func (s *Server) RegisterContractRoutes(r chi.Router) {
	s.Rbac.Add(rbac.RoleAdmin, "CONTRACTS_LIST_VIEW", http.MethodGet, "/depot/contracts")
	s.Rbac.Add(rbac.RoleOperator, "CONTRACTS_LIST_VIEW", http.MethodGet, "/depot/contracts")
	s.Rbac.Add(rbac.RoleClient, "CONTRACTS_LIST_VIEW", http.MethodGet, "/depot/contracts")
	r.Get("/contracts", contractspage.ContractsPageQueryHandler(s.DB))

	s.Rbac.Add(rbac.RoleAdmin, "CONTRACTS_CREATE", http.MethodPost, "/depot/contracts")
	r.Post("/contracts", contractspage.CreateContractCommandHandler(s.DB, s.SessionCache, s.Audit))

	s.Rbac.Add(rbac.RoleAdmin, "CONTRACTS_ACTIVATE", http.MethodPost, "/depot/contracts/*/activate")
	s.Rbac.Add(rbac.RoleOperator, "CONTRACTS_ACTIVATE", http.MethodPost, "/depot/contracts/*/activate")
	r.Post("/contracts/{id}/activate", contractspage.ActivateContractCommandHandler(s.DB, s.SessionCache, s.Audit))

	s.Rbac.Add(rbac.RoleAdmin, "CONTRACTS_STATUS_EDIT", http.MethodPost, "/depot/contracts/*/status")
	r.Post("/contracts/{id}/status", contractspage.UpdateContractStatusCommandHandler(s.DB, s.SessionCache, s.Audit))
}

func (s *Server) RegisterPalletRoutes(r chi.Router) {
	s.Rbac.Add(rbac.RoleAdmin, "PALLETS_LIST_VIEW", http.MethodGet, "/depot/pallets")
	s.Rbac.Add(rbac.RoleOperator, "PALLETS_LIST_VIEW", http.MethodGet, "/depot/pallets")
	s.Rbac.Add(rbac.RoleClient, "PALLETS_LIST_VIEW", http.MethodGet, "/depot/pallets")
	r.Get("/pallets", pallets.PalletsPageQueryHandler(s.DB))

	s.Rbac.Add(rbac.RoleAdmin, "PALLET_DETAIL_VIEW", http.MethodGet, "/depot/pallets/*")
	s.Rbac.Add(rbac.RoleOperator, "PALLET_DETAIL_VIEW", http.MethodGet, "/depot/pallets/*")
	s.Rbac.Add(rbac.RoleClient, "PALLET_DETAIL_VIEW", http.MethodGet, "/depot/pallets/*")
	r.Get("/pallets/{id}", pallets.PalletDetailQueryHandler(s.DB))
	r.Get("/pallets/{id}/label.pdf", pallets.ContentLabelQueryHandler(s.DB))

	s.Rbac.Add(rbac.RoleAdmin, "PALLET_CREATE", http.MethodPost, "/depot/api/pallets")
	s.Rbac.Add(rbac.RoleOperator, "PALLET_CREATE", http.MethodPost, "/depot/api/pallets")
	r.Post("/api/pallets", pallets.CreatePalletCommandHandler(s.DB, s.Audit, s.Settings))

	s.Rbac.Add(rbac.RoleAdmin, "PALLET_ITEM_EDIT", http.MethodPost, "/depot/api/pallets/*/items")
	s.Rbac.Add(rbac.RoleOperator, "PALLET_ITEM_EDIT", http.MethodPost, "/depot/api/pallets/*/items")
	r.Post("/api/pallets/{id}/items", pallets.UpsertItemCommandHandler(s.DB))

	s.Rbac.Add(rbac.RoleAdmin, "PALLET_COUNT_RECORD", http.MethodPost, "/depot/api/pallets/*/counts")
	s.Rbac.Add(rbac.RoleOperator, "PALLET_COUNT_RECORD", http.MethodPost, "/depot/api/pallets/*/counts")
	r.Post("/api/pallets/{id}/counts", pallets.RecordCountCommandHandler(s.DB))

	s.Rbac.Add(rbac.RoleAdmin, "PALLET_ANALYZE", http.MethodPost, "/depot/api/pallets/*/analyze")
	s.Rbac.Add(rbac.RoleOperator, "PALLET_ANALYZE", http.MethodPost, "/depot/api/pallets/*/analyze")
	r.Post("/api/pallets/{id}/analyze", pallets.AnalyzeCommandHandler(s.DB, s.Vision, s.Settings))

	for _, action := range []string{"seal", "receive", "finalize", "cancel"} {
		s.Rbac.Add(rbac.RoleAdmin, "PALLET_TRANSITION", http.MethodPost, "/depot/api/pallets/*/"+action)
		s.Rbac.Add(rbac.RoleOperator, "PALLET_TRANSITION", http.MethodPost, "/depot/api/pallets/*/"+action)
		r.Post("/api/pallets/{id}/"+action, pallets.TransitionCommandHandler(s.DB, s.Audit, action))
	}
}

func (s *Server) RegisterManifestRoutes(r chi.Router) {
	s.Rbac.Add(rbac.RoleAdmin, "MANIFESTS_LIST_VIEW", http.MethodGet, "/depot/manifests")
	s.Rbac.Add(rbac.RoleOperator, "MANIFESTS_LIST_VIEW", http.MethodGet, "/depot/manifests")
	s.Rbac.Add(rbac.RoleClient, "MANIFESTS_LIST_VIEW", http.MethodGet, "/depot/manifests")
	r.Get("/manifests", manifests.ManifestsPageQueryHandler(s.DB))

	s.Rbac.Add(rbac.RoleAdmin, "MANIFEST_DETAIL_VIEW", http.MethodGet, "/depot/manifests/*")
	s.Rbac.Add(rbac.RoleOperator, "MANIFEST_DETAIL_VIEW", http.MethodGet, "/depot/manifests/*")
	s.Rbac.Add(rbac.RoleClient, "MANIFEST_DETAIL_VIEW", http.MethodGet, "/depot/manifests/*")
	r.Get("/manifests/{id}", manifests.ManifestDetailQueryHandler(s.DB))

	s.Rbac.Add(rbac.RoleAdmin, "MANIFEST_CREATE", http.MethodPost, "/depot/api/manifests")
	s.Rbac.Add(rbac.RoleOperator, "MANIFEST_CREATE", http.MethodPost, "/depot/api/manifests")
	r.Post("/api/manifests", manifests.CreateManifestCommandHandler(s.DB, s.Audit))

	s.Rbac.Add(rbac.RoleAdmin, "MANIFEST_PALLET_ATTACH", http.MethodPost, "/depot/api/manifests/*/pallets")
	s.Rbac.Add(rbac.RoleOperator, "MANIFEST_PALLET_ATTACH", http.MethodPost, "/depot/api/manifests/*/pallets")
	r.Post("/api/manifests/{id}/pallets", manifests.AttachPalletCommandHandler(s.DB, s.Audit))

	s.Rbac.Add(rbac.RoleAdmin, "MANIFEST_PALLET_DETACH", http.MethodDelete, "/depot/api/manifests/*/pallets/*")
	s.Rbac.Add(rbac.RoleOperator, "MANIFEST_PALLET_DETACH", http.MethodDelete, "/depot/api/manifests/*/pallets/*")
	r.Delete("/api/manifests/{id}/pallets/{palletId}", manifests.DetachPalletCommandHandler(s.DB, s.Audit))

	s.Rbac.Add(rbac.RoleAdmin, "MANIFEST_LOAD", http.MethodPost, "/depot/api/manifests/*/load")
	s.Rbac.Add(rbac.RoleOperator, "MANIFEST_LOAD", http.MethodPost, "/depot/api/manifests/*/load")
	r.Post("/api/manifests/{id}/load", manifests.LoadCommandHandler(s.DB, s.Audit))

	for _, action := range []string{"depart", "deliver"} {
		s.Rbac.Add(rbac.RoleAdmin, "MANIFEST_TRANSITION", http.MethodPost, "/depot/api/manifests/*/"+action)
		s.Rbac.Add(rbac.RoleOperator, "MANIFEST_TRANSITION", http.MethodPost, "/depot/api/manifests/*/"+action)
		r.Post("/api/manifests/{id}/"+action, manifests.TransitionCommandHandler(s.DB, s.Audit, action))
	}
}

func (s *Server) RegisterReceiptRoutes(r chi.Router) {
	s.Rbac.Add(rbac.RoleAdmin, "RECEIPTS_LIST_VIEW", http.MethodGet, "/depot/receipts")
	s.Rbac.Add(rbac.RoleOperator, "RECEIPTS_LIST_VIEW", http.MethodGet, "/depot/receipts")
	s.Rbac.Add(rbac.RoleClient, "RECEIPTS_LIST_VIEW", http.MethodGet, "/depot/receipts")
	r.Get("/receipts", receipts.ReceiptsPageQueryHandler(s.DB))

	s.Rbac.Add(rbac.RoleAdmin, "RECEIPT_CREATE", http.MethodPost, "/depot/api/receipts")
	s.Rbac.Add(rbac.RoleOperator, "RECEIPT_CREATE", http.MethodPost, "/depot/api/receipts")
	r.Post("/api/receipts", receipts.CreateReceiptCommandHandler(s.DB, s.Audit))
}

func (s *Server) RegisterComparisonRoutes(r chi.Router) {
	s.Rbac.Add(rbac.RoleAdmin, "COMPARISONS_LIST_VIEW", http.MethodGet, "/depot/comparisons")
	s.Rbac.Add(rbac.RoleOperator, "COMPARISONS_LIST_VIEW", http.MethodGet, "/depot/comparisons")
	s.Rbac.Add(rbac.RoleClient, "COMPARISONS_LIST_VIEW", http.MethodGet, "/depot/comparisons")
	r.Get("/comparisons", comparisons.ComparisonsPageQueryHandler(s.DB, s.Settings))

	s.Rbac.Add(rbac.RoleAdmin, "COMPARISON_GENERATE", http.MethodPost, "/depot/api/comparisons")
	s.Rbac.Add(rbac.RoleOperator, "COMPARISON_GENERATE", http.MethodPost, "/depot/api/comparisons")
	r.Post("/api/comparisons", comparisons.GenerateCommandHandler(s.DB, s.Audit, s.Settings))

	s.Rbac.Add(rbac.RoleAdmin, "COMPARISON_RECLASSIFY", http.MethodPost, "/depot/api/comparisons/*/reclassify")
	s.Rbac.Add(rbac.RoleOperator, "COMPARISON_RECLASSIFY", http.MethodPost, "/depot/api/comparisons/*/reclassify")
	r.Post("/api/comparisons/{id}/reclassify", comparisons.ReclassifyCommandHandler(s.DB, s.Audit))

	s.Rbac.Add(rbac.RoleAdmin, "COMPARISON_STATS", http.MethodGet, "/depot/api/comparisons/stats")
	s.Rbac.Add(rbac.RoleOperator, "COMPARISON_STATS", http.MethodGet, "/depot/api/comparisons/stats")
	s.Rbac.Add(rbac.RoleClient, "COMPARISON_STATS", http.MethodGet, "/depot/api/comparisons/stats")
	r.Get("/api/comparisons/stats", comparisons.StatsQueryHandler(s.DB))
}

// RegisterAdminRoutes registers admin-only routes.
func (s *Server) RegisterAdminRoutes(r chi.Router) chi.Router {
	s.Rbac.Add(rbac.RoleAdmin, "QRTAGS_LIST_VIEW", http.MethodGet, "/depot/qrtags")
	r.Get("/qrtags", qrtags.TagsPageQueryHandler(s.DB))
	s.Rbac.Add(rbac.RoleAdmin, "QRTAGS_BATCH_CREATE", http.MethodPost, "/depot/api/qrtags/batch")
	r.Post("/api/qrtags/batch", qrtags.BatchGenerateCommandHandler(s.DB, s.Audit))
	s.Rbac.Add(rbac.RoleAdmin, "QRTAGS_LABELS_PDF", http.MethodGet, "/depot/qrtags/labels.pdf")
	r.Get("/qrtags/labels.pdf", qrtags.LabelSheetQueryHandler(s.DB))

	s.Rbac.Add(rbac.RoleAdmin, "LOCATIONS_LIST_VIEW", http.MethodGet, "/depot/locations")
	r.Get("/locations", locations.LocationsPageQueryHandler(s.DB))
	s.Rbac.Add(rbac.RoleAdmin, "LOCATION_CREATE", http.MethodPost, "/depot/api/locations")
	r.Post("/api/locations", locations.CreateLocationCommandHandler(s.DB, s.Audit))
	s.Rbac.Add(rbac.RoleAdmin, "LOCATION_RENAME", http.MethodPost, "/depot/api/locations/*/rename")
	r.Post("/api/locations/{id}/rename", locations.RenameLocationCommandHandler(s.DB, s.Audit))
	s.Rbac.Add(rbac.RoleAdmin, "LOCATION_DELETE", http.MethodDelete, "/depot/api/locations/*")
	r.Delete("/api/locations/{id}", locations.DeleteLocationCommandHandler(s.DB, s.Audit))

	s.Rbac.Add(rbac.RoleAdmin, "STOCK_IMPORT_VIEW", http.MethodGet, "/depot/stock/import")
	r.Get("/stock/import", stock.StockImportPageQueryHandler(s.DB))
	s.Rbac.Add(rbac.RoleAdmin, "STOCK_IMPORT", http.MethodPost, "/depot/stock/import")
	r.Post("/stock/import", stock.StockImportCommandHandler(s.DB, s.Audit))
	s.Rbac.Add(rbac.RoleAdmin, "STOCK_DELETE_BULK", http.MethodPost, "/depot/api/stock/delete")
	r.Post("/api/stock/delete", stock.StockDeleteItemsCommandHandler(s.DB, s.Audit))
	s.Rbac.Add(rbac.RoleAdmin, "STOCK_DELETE_ONE", http.MethodPost, "/depot/api/stock/delete/*")
	r.Post("/api/stock/delete/{id}", stock.StockDeleteItemCommandHandler(s.DB, s.Audit))

	s.Rbac.Add(rbac.RoleAdmin, "EXPORTS_VIEW", http.MethodGet, "/depot/exports")
	r.Get("/exports", exportspage.ExportsPageQueryHandler(s.DB))
	s.Rbac.Add(rbac.RoleAdmin, "EXPORT_COMPARISONS", http.MethodGet, "/depot/api/exports/comparisons.csv")
	r.Get("/api/exports/comparisons.csv", exportspage.ComparisonsExportCSVHandler(s.DB))
	s.Rbac.Add(rbac.RoleAdmin, "EXPORT_RECEIPT_COMPARISONS", http.MethodGet, "/depot/api/exports/receipts/*/comparisons.csv")
	r.Get("/api/exports/receipts/{id}/comparisons.csv", exportspage.ReceiptComparisonsCSVHandler(s.DB))
	s.Rbac.Add(rbac.RoleAdmin, "EXPORT_RECEIPTS", http.MethodGet, "/depot/api/exports/receipts.csv")
	r.Get("/api/exports/receipts.csv", exportspage.ReceiptsExportCSVHandler(s.DB))
	s.Rbac.Add(rbac.RoleAdmin, "EXPORT_STATUS", http.MethodGet, "/depot/api/exports/pallet-status.csv")
	r.Get("/api/exports/pallet-status.csv", exportspage.PalletStatusCSVHandler(s.DB))

	s.Rbac.Add(rbac.RoleAdmin, "SETTINGS_RECONCILIATION_VIEW", http.MethodGet, "/depot/settings/reconciliation")
	r.Get("/settings/reconciliation", settings.ReconciliationSettingsPageHandler(s.Settings))
	s.Rbac.Add(rbac.RoleAdmin, "SETTINGS_RECONCILIATION_EDIT", http.MethodPost, "/depot/api/settings/reconciliation")
	r.Post("/api/settings/reconciliation", settings.ReconciliationSettingsUpdateHandler(s.Settings, s.Audit))

	s.Rbac.Add(rbac.RoleAdmin, "ADMIN_USERS_LIST_VIEW", http.MethodGet, "/depot/admin/users")
	r.Get("/admin/users", adminusers.UsersPageQueryHandler(s.DB))
	s.Rbac.Add(rbac.RoleAdmin, "ADMIN_USERS_CREATE", http.MethodPost, "/depot/api/admin/users")
	r.Post("/api/admin/users", adminusers.CreateUserCommandHandler(s.DB))
	s.Rbac.Add(rbac.RoleAdmin, "ADMIN_USERS_CLIENT_ACCESS", http.MethodPost, "/depot/api/admin/users/client-access")
	r.Post("/api/admin/users/client-access", adminusers.UpdateClientContractAccessCommandHandler(s.DB))
	return r
}
