package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"

	"github.com/usktea/lunch-indexer/models"
)

var ErrNotFound = errors.New("restaurant not found")

const restaurantColumns = `management_number, name, contact, sido, sigungu, dongmyun, ri, road, building_number, address,
	ST_X(location), ST_Y(location), status, h3_indices,
	external_link, main_category, detail_category, business_hours, menus, summary, minimum, maximum`

const insertRestaurantQuery = `insert into lunch.restaurant (
	management_number, name, contact, sido, sigungu, dongmyun, ri, road, building_number, address,
	location, status, h3_indices, external_link, main_category, detail_category,
	business_hours, menus, summary, minimum, maximum)
values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
	ST_GeomFromText($11, 4326), $12, $13::text[], $14, $15, $16,
	$17::jsonb, $18::jsonb, $19, $20, $21)
on conflict (management_number) do nothing`

// query builders
func buildPlacesQuery(q PlaceQuery) (string, []any) {
	distance := `ST_DistanceSphere(r.location, ST_SetSRID(ST_MakePoint($2, $3), 4326))`
	args := []any{pq.Array(q.Cells), q.CenterLon, q.CenterLat, q.MaxDistance}

	filter_list := []string{
		`r.h3_indices && $1::text[]`,
		distance + ` <= $4`,
		`r.status = 'OPEN'`,
	}
	if q.Keyword != "" {
		args = append(args, escapeLike(q.Keyword))
		filter_list = append(filter_list, fmt.Sprintf(`r.name ilike '%%' || $%d || '%%'`, len(args)))
	}
	if q.MainCategory != "" {
		args = append(args, q.MainCategory)
		filter_list = append(filter_list, fmt.Sprintf(`r.main_category = $%d`, len(args)))
	}

	var orderby_query string
	switch q.SortBy {
	case SortByRating:
		orderby_query = `coalesce(avg(rv.rating), 0) desc, ` + distance + ` asc`
	case SortByReviewCount:
		orderby_query = `count(rv.id) desc, ` + distance + ` asc`
	default:
		orderby_query = distance + ` asc`
	}

	limit := q.Limit
	if limit <= 0 {
		limit = PlacesLimit
	}

	query := `select r.management_number, r.name, r.main_category, r.detail_category, r.address,
	` + distance + `::int as distance,
	coalesce(avg(rv.rating), 0)::float8 as average_rating,
	count(rv.id)::int as review_count,
	r.minimum, r.maximum,
	ST_Y(r.location), ST_X(r.location)
from lunch.restaurant r
left join lunch.review rv on r.management_number = rv.restaurant_management_number and rv.status = 'CREATED'
where ` + strings.Join(filter_list, " and ") + `
group by r.management_number
order by ` + orderby_query + fmt.Sprintf(`
limit %d`, limit)
	return query, args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func restaurantArgs(r *models.Restaurant) ([]any, error) {
	hours := r.BusinessHours
	if hours == nil {
		hours = []models.BusinessHour{}
	}
	menus := r.Menus
	if menus == nil {
		menus = []models.Menu{}
	}
	hoursJSON, err := json.Marshal(hours)
	if err != nil {
		return nil, err
	}
	menusJSON, err := json.Marshal(menus)
	if err != nil {
		return nil, err
	}
	var minimum, maximum *int
	if r.PriceRange != nil {
		minimum, maximum = &r.PriceRange.Minimum, &r.PriceRange.Maximum
	}
	return []any{
		r.ManagementNumber, r.Name, r.Contact,
		r.Sido, r.Sigungu, r.Dongmyun, r.Ri, r.Road, r.BuildingNumber, r.Address,
		r.PointWKT(), string(r.Status), pq.Array(r.H3Indices),
		r.ExternalLink, r.MainCategory, r.DetailCategory,
		string(hoursJSON), string(menusJSON), r.Summary, minimum, maximum,
	}, nil
}

// Methods

// InsertRestaurants writes the batch in one round trip. Rows whose management number
// already exists are skipped; the number of rows actually written is returned.
func (db *DbClient) InsertRestaurants(ctx context.Context, restaurants []models.Restaurant) (int64, error) {
	if len(restaurants) == 0 {
		return 0, nil
	}
	batch := &pgx.Batch{}
	for i := range restaurants {
		args, err := restaurantArgs(&restaurants[i])
		if err != nil {
			return 0, fmt.Errorf("encode restaurant %s: %w", restaurants[i].ManagementNumber, err)
		}
		batch.Queue(insertRestaurantQuery, args...)
	}

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	results := tx.SendBatch(ctx, batch)
	var inserted int64
	for i := range restaurants {
		tag, err := results.Exec()
		if err != nil {
			results.Close()
			return 0, fmt.Errorf("insert restaurant %s: %w", restaurants[i].ManagementNumber, err)
		}
		inserted += tag.RowsAffected()
	}
	if err := results.Close(); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return inserted, nil
}

// FindOpenByCells returns the open restaurants indexed under any of the cells
func (db *DbClient) FindOpenByCells(ctx context.Context, cellIDs []string) ([]models.Restaurant, error) {
	query := `select management_number, name, main_category, detail_category, ST_X(location), ST_Y(location), h3_indices
		from lunch.restaurant where h3_indices && $1::text[] and status = 'OPEN'`

	rows, err := db.Pool.Query(ctx, query, pq.Array(cellIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := []models.Restaurant{}
	for rows.Next() {
		r, err := ScanMarker(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *r)
	}
	return res, rows.Err()
}

func (db *DbClient) SearchPlaces(ctx context.Context, q PlaceQuery) ([]PlaceRow, error) {
	query, args := buildPlacesQuery(q)

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := []PlaceRow{}
	for rows.Next() {
		p, err := ScanPlace(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *p)
	}
	return res, rows.Err()
}

func (db *DbClient) FindByManagementNumber(ctx context.Context, managementNumber string) (*models.Restaurant, error) {
	row := db.Pool.QueryRow(ctx, `select `+restaurantColumns+` from lunch.restaurant where management_number = $1`, managementNumber)
	r, err := ScanRestaurant(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}
