package main

import (
	"context"
	"log"
	"strings"

	"opsboard-backend/internal/models"
	"opsboard-backend/internal/repositories"
)

// seedMemory gives the in-memory driver one store, one warehouse and a user
// per workflow role so a local run can walk a transfer end to end.
func seedMemory(store *repositories.MemoryStore) {
	ctx := context.Background()

	storeLoc := &models.Location{LocationName: "Demo Store", LocationCode: "ST-DEMO", LocationType: models.LocationTypeStore, IsActive: true}
	warehouse := &models.Location{LocationName: "Demo Warehouse", LocationCode: "WH-DEMO", LocationType: models.LocationTypeWarehouse, IsActive: true}
	for _, l := range []*models.Location{storeLoc, warehouse} {
		if err := store.CreateLocation(ctx, l); err != nil {
			log.Fatalf("[Store] Failed to seed location %s: %v", l.LocationCode, err)
		}
	}

	people := []struct {
		name string
		role models.Role
		at   *models.Location
	}{
		{"Demo Lineman", models.RoleLineman, storeLoc},
		{"Demo Store Manager", models.RoleStoreManager, storeLoc},
		{"Demo Warehouse Manager", models.RoleWarehouseManager, warehouse},
		{"Demo Packer", models.RolePackingTeam, warehouse},
		{"Demo Logistics Manager", models.RoleLogisticsManager, warehouse},
		{"Demo Driver", models.RoleLogisticsTeam, warehouse},
	}
	for _, p := range people {
		email := strings.ReplaceAll(strings.ToLower(p.name), " ", ".") + "@example.com"
		u := store.AddUser(models.User{FullName: p.name, Email: email, IsActive: true})
		a := &models.RoleAssignment{UserID: u.ID, LocationID: p.at.ID, Role: p.role}
		if err := store.CreateRoleAssignment(ctx, a); err != nil {
			log.Fatalf("[Store] Failed to seed role %s: %v", p.role, err)
		}
		log.Printf("[Store] Seeded user %d %s (%s at %s)", u.ID, p.name, p.role, p.at.LocationCode)
	}
}
