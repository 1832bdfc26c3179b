// Package mongo implements the product store on MongoDB. It is the primary
// store: unordered InsertMany gives per-record outcomes, and unique indexes
// on sku, url_key and (sku, store) turn collisions into duplicate reports
// instead of batch failures.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/taycommerce/abyat-crawler/internal/catalog"
)

const (
	collectionName = "products"

	duplicateKeyCode = 11000
)

// Store is a MongoDB-backed catalog.ProductStore.
type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// Connect dials MongoDB, verifies the connection and ensures the unique
// indexes the duplicate classification depends on.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(dialCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(dialCtx, nil); err != nil {
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	s := &Store{
		client:     client,
		collection: client.Database(database).Collection(collectionName),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "sku", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("sku_1"),
		},
		{
			Keys:    bson.D{{Key: "url_key", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("url_key_1"),
		},
		{
			Keys:    bson.D{{Key: "sku", Value: 1}, {Key: "store", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("sku_1_store_1"),
		},
	}
	if _, err := s.collection.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("create product indexes: %w", err)
	}
	return nil
}

// ClearAll removes every product. Crawl runs call this before writing so
// that the collection always reflects the latest traversal.
func (s *Store) ClearAll(ctx context.Context) error {
	if _, err := s.collection.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("clear products: %w", err)
	}
	return nil
}

// InsertBatch inserts unordered. A duplicate-key write error becomes a
// duplicate failure for that index only; every index absent from the write
// errors is reported inserted.
func (s *Store) InsertBatch(ctx context.Context, products []catalog.Product) (catalog.BatchReport, error) {
	if len(products) == 0 {
		return catalog.BatchReport{}, nil
	}

	now := time.Now().UTC()
	docs := make([]interface{}, 0, len(products))
	for _, p := range products {
		p.CreatedAt = now
		p.UpdatedAt = now
		docs = append(docs, p)
	}

	_, err := s.collection.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err == nil {
		report := catalog.BatchReport{Inserted: make([]int, 0, len(products))}
		for i := range products {
			report.Inserted = append(report.Inserted, i)
		}
		return report, nil
	}

	var bulkErr mongo.BulkWriteException
	if !errors.As(err, &bulkErr) {
		return catalog.BatchReport{}, fmt.Errorf("insert products: %w", err)
	}
	return classifyBulkError(len(products), bulkErr), nil
}

// classifyBulkError folds an unordered bulk write exception into a report.
// Indexes absent from the write errors committed, so they count as inserted.
func classifyBulkError(total int, bulkErr mongo.BulkWriteException) catalog.BatchReport {
	failed := make(map[int]catalog.InsertFailure, len(bulkErr.WriteErrors))
	for _, we := range bulkErr.WriteErrors {
		failure := catalog.InsertFailure{
			Index:   we.Index,
			Message: we.Message,
		}
		if we.Code == duplicateKeyCode {
			failure.Duplicate = true
			failure.Field, failure.Value = duplicateKeyDetails(we.Message)
		}
		failed[we.Index] = failure
	}

	var report catalog.BatchReport
	for i := 0; i < total; i++ {
		if f, ok := failed[i]; ok {
			report.Failures = append(report.Failures, f)
			continue
		}
		report.Inserted = append(report.Inserted, i)
	}
	return report
}

var (
	dupIndexRe = regexp.MustCompile(`index: (\S+)`)
	dupKeyRe   = regexp.MustCompile(`dup key: \{\s*([\w.]+):\s*"?([^"}]*?)"?\s*\}`)
)

// duplicateKeyDetails recovers the violated field and value from an E11000
// message, e.g.
//
//	E11000 duplicate key error collection: abyat.products index: url_key_1
//	dup key: { url_key: "tay-1-mirror" }
//
// The index name strips its direction suffixes; for compound indexes the
// first field names the violation.
func duplicateKeyDetails(message string) (field, value string) {
	if m := dupKeyRe.FindStringSubmatch(message); m != nil {
		field = strings.TrimSpace(m[1])
		value = strings.TrimSpace(m[2])
	}
	if field == "" {
		if m := dupIndexRe.FindStringSubmatch(message); m != nil {
			field = indexLeadField(m[1])
		}
	}
	return field, value
}

func indexLeadField(indexName string) string {
	parts := strings.Split(indexName, "_")
	var fields []string
	current := make([]string, 0, 2)
	for _, part := range parts {
		if part == "1" || part == "-1" {
			fields = append(fields, strings.Join(current, "_"))
			current = current[:0]
			continue
		}
		current = append(current, part)
	}
	if len(fields) > 0 {
		return fields[0]
	}
	return indexName
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	n, err := s.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

// List applies the query filter, sort and pagination server-side. Price
// bounds convert the stored string through $toDouble so "99.5" orders
// numerically rather than lexically.
func (s *Store) List(ctx context.Context, query catalog.ProductQuery) ([]catalog.Product, int64, error) {
	filter := buildFilter(query)

	total, err := s.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count filtered products: %w", err)
	}

	page := query.Page
	if page <= 0 {
		page = 1
	}
	limit := query.Limit
	if limit <= 0 {
		limit = 10
	}

	findOpts := options.Find().
		SetSort(sortSpec(query)).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cursor, err := s.collection.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer cursor.Close(ctx)

	var products []catalog.Product
	if err := cursor.All(ctx, &products); err != nil {
		return nil, 0, fmt.Errorf("decode products: %w", err)
	}
	return products, total, nil
}

func buildFilter(query catalog.ProductQuery) bson.M {
	filter := bson.M{}
	if query.Category != "" {
		filter["categories1"] = query.Category
	}
	if query.InStock {
		filter["is_in_stock"] = 1
	}
	if query.Search != "" {
		regex := bson.M{"$regex": regexp.QuoteMeta(query.Search), "$options": "i"}
		filter["$or"] = bson.A{
			bson.M{"name": regex},
			bson.M{"sku": regex},
			bson.M{"description": regex},
		}
	}

	var priceConds bson.A
	if min, err := strconv.ParseFloat(query.PriceMin, 64); err == nil && query.PriceMin != "" {
		priceConds = append(priceConds, bson.M{"$gte": bson.A{priceAsDouble(), min}})
	}
	if max, err := strconv.ParseFloat(query.PriceMax, 64); err == nil && query.PriceMax != "" {
		priceConds = append(priceConds, bson.M{"$lte": bson.A{priceAsDouble(), max}})
	}
	if len(priceConds) > 0 {
		filter["$expr"] = bson.M{"$and": priceConds}
	}
	return filter
}

func priceAsDouble() bson.M {
	return bson.M{"$convert": bson.M{
		"input":   "$price",
		"to":      "double",
		"onError": 0.0,
		"onNull":  0.0,
	}}
}

func sortSpec(query catalog.ProductQuery) bson.D {
	field := "created_at"
	switch query.SortBy {
	case "name", "sku", "price", "qty", "created_at":
		field = query.SortBy
	}
	dir := 1
	if query.SortDesc {
		dir = -1
	}
	return bson.D{{Key: field, Value: dir}}
}

func (s *Store) GetBySKU(ctx context.Context, sku string) (catalog.Product, error) {
	var p catalog.Product
	err := s.collection.FindOne(ctx, bson.M{"sku": sku}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return catalog.Product{}, catalog.ErrNotFound
	}
	if err != nil {
		return catalog.Product{}, fmt.Errorf("get product %s: %w", sku, err)
	}
	return p, nil
}

// UpdateBySKU applies a partial update. The sku itself is immutable.
func (s *Store) UpdateBySKU(ctx context.Context, sku string, fields map[string]any) (catalog.Product, error) {
	set := bson.M{}
	for k, v := range fields {
		if k == "sku" || k == "_id" {
			continue
		}
		set[k] = v
	}
	set["updated_at"] = time.Now().UTC()

	res, err := s.collection.UpdateOne(ctx, bson.M{"sku": sku}, bson.M{"$set": set})
	if err != nil {
		return catalog.Product{}, fmt.Errorf("update product %s: %w", sku, err)
	}
	if res.MatchedCount == 0 {
		return catalog.Product{}, catalog.ErrNotFound
	}
	return s.GetBySKU(ctx, sku)
}

func (s *Store) DeleteBySKU(ctx context.Context, sku string) error {
	res, err := s.collection.DeleteOne(ctx, bson.M{"sku": sku})
	if err != nil {
		return fmt.Errorf("delete product %s: %w", sku, err)
	}
	if res.DeletedCount == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

func (s *Store) Categories(ctx context.Context) ([]string, error) {
	values, err := s.collection.Distinct(ctx, "categories1", bson.M{})
	if err != nil {
		return nil, fmt.Errorf("distinct categories: %w", err)
	}
	categories := make([]string, 0, len(values))
	for _, v := range values {
		if str, ok := v.(string); ok && str != "" {
			categories = append(categories, str)
		}
	}
	sort.Strings(categories)
	return categories, nil
}

func (s *Store) Stats(ctx context.Context) (catalog.Stats, error) {
	total, err := s.Count(ctx)
	if err != nil {
		return catalog.Stats{}, err
	}
	inStock, err := s.collection.CountDocuments(ctx, bson.M{"is_in_stock": 1})
	if err != nil {
		return catalog.Stats{}, fmt.Errorf("count in-stock products: %w", err)
	}

	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":       nil,
			"avg_price": bson.M{"$avg": priceAsDouble()},
		}}},
	}
	cursor, err := s.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return catalog.Stats{}, fmt.Errorf("aggregate price stats: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		AvgPrice float64 `bson:"avg_price"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return catalog.Stats{}, fmt.Errorf("decode price stats: %w", err)
	}

	stats := catalog.Stats{
		TotalProducts: total,
		InStock:       inStock,
		OutOfStock:    total - inStock,
	}
	if len(rows) > 0 {
		stats.AveragePrice = rows[0].AvgPrice
	}
	return stats, nil
}

func (s *Store) All(ctx context.Context) ([]catalog.Product, error) {
	cursor, err := s.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("load all products: %w", err)
	}
	defer cursor.Close(ctx)

	var products []catalog.Product
	if err := cursor.All(ctx, &products); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}
	return products, nil
}

func (s *Store) Close(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect mongodb: %w", err)
	}
	return nil
}
