package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/safemap/internal/core/domain"
	"github.com/samirrijal/safemap/internal/core/usecases"
)

func serviceMap(s domain.ServiceRecord) map[string]interface{} {
	m := map[string]interface{}{
		"id":          s.ID,
		"name":        s.Name,
		"category":    string(s.Category),
		"label":       s.Category.Info().Label,
		"location":    map[string]interface{}{"lat": s.Location.Lat, "lon": s.Location.Lon},
		"phone":       s.Phone,
		"address":     s.Address,
		"open_status": string(s.OpenStatus),
		"nearby":      usecases.IsNearby(s),
	}
	if s.Distance != nil {
		m["distance_km"] = *s.Distance
	}
	return m
}

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	serviceType := graphql.NewObject(graphql.ObjectConfig{
		Name: "EmergencyService",
		Fields: graphql.Fields{
			"id":          &graphql.Field{Type: graphql.String},
			"name":        &graphql.Field{Type: graphql.String},
			"category":    &graphql.Field{Type: graphql.String},
			"label":       &graphql.Field{Type: graphql.String},
			"location":    &graphql.Field{Type: geoPointType},
			"phone":       &graphql.Field{Type: graphql.String},
			"address":     &graphql.Field{Type: graphql.String},
			"open_status": &graphql.Field{Type: graphql.String},
			"distance_km": &graphql.Field{Type: graphql.Float},
			"nearby":      &graphql.Field{Type: graphql.Boolean},
		},
	})

	hotlineType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Hotline",
		Fields: graphql.Fields{
			"name":  &graphql.Field{Type: graphql.String},
			"phone": &graphql.Field{Type: graphql.String},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"nearbyServices": &graphql.Field{
				Type:        graphql.NewList(serviceType),
				Description: "Ranked emergency services near a location",
				Args: graphql.FieldConfigArgument{
					"lat":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"radiusKm": &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 0.0},
					"category": &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: domain.CategoryAll},
					"search":   &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
					"limit":    &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 50},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					center := domain.GeoPoint{Lat: p.Args["lat"].(float64), Lon: p.Args["lon"].(float64)}
					criteria := domain.FilterCriteria{
						SearchText: p.Args["search"].(string),
						Category:   p.Args["category"].(string),
					}
					res, err := deps.Nearby.Find(p.Context, center, p.Args["radiusKm"].(float64), criteria)
					if err != nil {
						return nil, err
					}
					limit := p.Args["limit"].(int)
					out := make([]map[string]interface{}, 0, len(res.Services))
					for i, s := range res.Services {
						if limit > 0 && i >= limit {
							break
						}
						out = append(out, serviceMap(s))
					}
					return out, nil
				},
			},
			"hotlines": &graphql.Field{
				Type:        graphql.NewList(hotlineType),
				Description: "Static emergency phone numbers",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					out := make([]map[string]interface{}, 0, len(deps.hotlines()))
					for _, h := range deps.hotlines() {
						out = append(out, map[string]interface{}{"name": h.Name, "phone": h.Phone})
					}
					return out, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
