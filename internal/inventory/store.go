package inventory

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/imrishuroy/storefront-orderflow/internal/aws"
	"github.com/imrishuroy/storefront-orderflow/internal/pricing"
)

// maxCASAttempts bounds the read-compare-write loops.
const maxCASAttempts = 5

// ErrInvalidProduct is returned for product input the store refuses to persist.
var ErrInvalidProduct = errors.New("invalid product")

// Store encapsulates operations on the products table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
	newID     func() string
}

// NewStore creates a new products Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
		newID:     uuid.NewString,
	}
}

// TableName is the products table the store writes to.
func (s *Store) TableName() string { return s.tableName }

func (s *Store) key(productID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"product_id": &types.AttributeValueMemberS{Value: productID},
	}
}

// Create persists a new product. Missing tax rates and description are derived from the
// category and name, negative stock is clamped to zero and the version starts at 1.
func (s *Store) Create(ctx context.Context, p Product) (*Product, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidProduct)
	}
	if p.Price < 0 {
		return nil, fmt.Errorf("%w: price must not be negative", ErrInvalidProduct)
	}
	if p.ID == "" {
		p.ID = s.newID()
	}

	d := DeriveDefaults(p.Category, p.Name)
	gst := d.GST
	if p.GST != nil {
		gst = pricing.RatesFor(p.GST, p.Category)
	}
	p.GST = &gst
	if p.Description == "" {
		p.Description = d.Description
	}

	if len(p.Variants) == 0 {
		p.Variants = nil
		p.Stock = clampPtr(p.Stock)
	} else {
		p.Stock = nil
		for color, v := range p.Variants {
			if strings.TrimSpace(color) == "" {
				return nil, fmt.Errorf("%w: color is required", ErrInvalidProduct)
			}
			if len(v.Images) == 0 {
				return nil, fmt.Errorf("%w: color %q", ErrImagesRequired, color)
			}
			p.Variants[color] = normalizeVariant(v)
		}
	}
	p.HasColors = p.Variants != nil

	now := s.nowFunc().UTC()
	p.Version = 1
	p.CreatedAt = now
	p.UpdatedAt = now

	item, err := attributevalue.MarshalMap(p)
	if err != nil {
		return nil, fmt.Errorf("marshal product: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(product_id)"),
	})
	if err != nil {
		if isConditionFailed(err) {
			return nil, fmt.Errorf("%w: product %s already exists", ErrInvalidProduct, p.ID)
		}
		return nil, fmt.Errorf("put item: %w", err)
	}
	return &p, nil
}

func normalizeVariant(v Variant) Variant {
	if v.Sizes == nil {
		v.Stock = clampPtr(v.Stock)
		return v
	}
	v.Stock = nil
	if len(v.Sizes) == 0 {
		for _, size := range DefaultSizes {
			v.Sizes[size] = 0
		}
	}
	for size, q := range v.Sizes {
		if q < 0 {
			v.Sizes[size] = 0
		}
	}
	return v
}

func clampPtr(q *int) *int {
	n := 0
	if q != nil && *q > 0 {
		n = *q
	}
	return &n
}

// Get fetches a product by id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, productID string) (*Product, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            s.key(productID),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var p Product
	if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
		return nil, fmt.Errorf("unmarshal product: %w", err)
	}
	return &p, nil
}

// ListOptions narrows List.
type ListOptions struct {
	VisibleOnly bool
	Category    string
}

// List scans the catalog. Featured products come first, then by name.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]Product, error) {
	in := &dyn.ScanInput{TableName: &s.tableName}
	var conds []string
	names := map[string]string{}
	values := map[string]types.AttributeValue{}
	if opts.VisibleOnly {
		conds = append(conds, "#sp = :visible")
		names["#sp"] = "show_product"
		values[":visible"] = &types.AttributeValueMemberBOOL{Value: true}
	}
	if opts.Category != "" {
		conds = append(conds, "#cat = :cat")
		names["#cat"] = "category"
		values[":cat"] = &types.AttributeValueMemberS{Value: opts.Category}
	}
	if len(conds) > 0 {
		in.FilterExpression = awsString(strings.Join(conds, " AND "))
		in.ExpressionAttributeNames = names
		in.ExpressionAttributeValues = values
	}

	var products []Product
	for {
		out, err := s.client.Scan(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("scan products: %w", err)
		}
		var page []Product
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("unmarshal products: %w", err)
		}
		products = append(products, page...)
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
	sort.SliceStable(products, func(i, j int) bool {
		if products[i].Featured != products[j].Featured {
			return products[i].Featured
		}
		return products[i].Name < products[j].Name
	})
	return products, nil
}

// Patch carries the product fields an admin may edit. Nil fields are left alone.
type Patch struct {
	Name        *string      `json:"name"`
	Price       *float64     `json:"price"`
	Category    *string      `json:"category"`
	Featured    *bool        `json:"featured"`
	ShowProduct *bool        `json:"showProduct"`
	GST         *pricing.GST `json:"gst"`
	GSM         *int         `json:"gsm"`
	Description *string      `json:"description"`
	Images      []string     `json:"images"`
}

// Update applies a patch. A category change without explicit rates resets the rates to the
// new category's defaults.
func (s *Store) Update(ctx context.Context, productID string, patch Patch) (*Product, error) {
	u := newUpdate()
	setAttr := func(attr string, v interface{}) error {
		av, err := attributevalue.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", attr, err)
		}
		n := strconv.Itoa(len(u.sets))
		u.set(u.name("#f"+n, attr) + " = " + u.value(":f"+n, av))
		return nil
	}

	var err error
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name is required", ErrInvalidProduct)
		}
		err = errors.Join(err, setAttr("name", name))
	}
	if patch.Price != nil {
		if *patch.Price < 0 {
			return nil, fmt.Errorf("%w: price must not be negative", ErrInvalidProduct)
		}
		err = errors.Join(err, setAttr("price", *patch.Price))
	}
	if patch.Category != nil {
		err = errors.Join(err, setAttr("category", *patch.Category))
	}
	switch {
	case patch.GST != nil:
		category := ""
		if patch.Category != nil {
			category = *patch.Category
		}
		err = errors.Join(err, setAttr("gst", pricing.RatesFor(patch.GST, category)))
	case patch.Category != nil:
		err = errors.Join(err, setAttr("gst", pricing.DefaultGST(*patch.Category)))
	}
	if patch.Featured != nil {
		err = errors.Join(err, setAttr("featured", *patch.Featured))
	}
	if patch.ShowProduct != nil {
		err = errors.Join(err, setAttr("show_product", *patch.ShowProduct))
	}
	if patch.GSM != nil {
		err = errors.Join(err, setAttr("gsm", *patch.GSM))
	}
	if patch.Description != nil {
		err = errors.Join(err, setAttr("description", *patch.Description))
	}
	if patch.Images != nil {
		err = errors.Join(err, setAttr("images", patch.Images))
	}
	if err != nil {
		return nil, err
	}
	if len(u.sets) == 0 {
		p, err := s.Get(ctx, productID)
		if err == nil && p == nil {
			err = ErrNotFound
		}
		return p, err
	}

	u.touch(s.nowFunc())
	p, err := s.apply(ctx, productID, u)
	if err != nil {
		if isConditionFailed(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update product: %w", err)
	}
	return p, nil
}

// SetVariantStock overwrites one leaf with qty, clamped at zero. The leaf must already exist
// under the product's stock model.
func (s *Store) SetVariantStock(ctx context.Context, leaf Leaf, qty int) (*Product, error) {
	if !leaf.valid() {
		return nil, fmt.Errorf("%w: %s", ErrLeafNotFound, leaf)
	}
	if qty < 0 {
		qty = 0
	}
	u := newUpdate()
	path := u.leafPath(leaf, "")
	u.set(path + " = " + u.value(":q", numberInt(qty)))
	u.require("attribute_exists(" + path + ")")
	if leaf.Color == "" {
		u.require("attribute_not_exists(" + u.name("#v", "variants") + ")")
	}
	u.touch(s.nowFunc())

	p, err := s.apply(ctx, leaf.ProductID, u)
	if err != nil {
		if isConditionFailed(err) {
			return nil, s.leafError(ctx, leaf, 0)
		}
		return nil, fmt.Errorf("set stock: %w", err)
	}
	return p, nil
}

// UpdateSizeQuantity overwrites the quantity of an existing size.
func (s *Store) UpdateSizeQuantity(ctx context.Context, productID, color, size string, qty int) (*Product, error) {
	return s.SetVariantStock(ctx, Leaf{ProductID: productID, Color: color, Size: size}, qty)
}

// DecrementStock atomically takes amount from a leaf. When the leaf holds less than amount
// nothing is written and an *InsufficientStockError is returned. It returns the remaining
// quantity.
func (s *Store) DecrementStock(ctx context.Context, leaf Leaf, amount int) (int, error) {
	if amount <= 0 {
		return 0, ErrInvalidQuantity
	}
	if !leaf.valid() {
		return 0, fmt.Errorf("%w: %s", ErrLeafNotFound, leaf)
	}
	u := newUpdate()
	path := u.leafPath(leaf, "")
	amt := u.value(":amt", numberInt(amount))
	u.set(path + " = " + path + " - " + amt)
	u.require(path + " >= " + amt)
	if leaf.Color == "" {
		u.require("attribute_not_exists(" + u.name("#v", "variants") + ")")
	}
	u.touch(s.nowFunc())

	p, err := s.apply(ctx, leaf.ProductID, u)
	if err != nil {
		if isConditionFailed(err) {
			return 0, s.leafError(ctx, leaf, amount)
		}
		return 0, fmt.Errorf("decrement stock: %w", err)
	}
	remaining, _ := leaf.Quantity(*p)
	return remaining, nil
}

// DecrementStockFloor takes up to amount from a leaf, stopping at zero. It returns the
// remaining quantity and the part of amount that could not be covered. The write is a
// compare-and-set on the leaf value, retried when another writer got there first.
func (s *Store) DecrementStockFloor(ctx context.Context, leaf Leaf, amount int) (remaining, shortfall int, err error) {
	if amount <= 0 {
		return 0, 0, ErrInvalidQuantity
	}
	if !leaf.valid() {
		return 0, 0, fmt.Errorf("%w: %s", ErrLeafNotFound, leaf)
	}
	for attempt := 1; attempt <= maxCASAttempts; attempt++ {
		p, err := s.Get(ctx, leaf.ProductID)
		if err != nil {
			return 0, 0, err
		}
		if p == nil {
			return 0, 0, ErrNotFound
		}
		current, ok := leaf.Quantity(*p)
		if !ok {
			return 0, 0, fmt.Errorf("%w: %s", ErrLeafNotFound, leaf)
		}
		next := current - amount
		short := 0
		if next < 0 {
			short, next = -next, 0
		}
		if next == current {
			return current, short, nil
		}

		u := newUpdate()
		path := u.leafPath(leaf, "")
		u.set(path + " = " + u.value(":next", numberInt(next)))
		u.require(path + " = " + u.value(":cur", numberInt(current)))
		u.touch(s.nowFunc())
		if _, err := s.apply(ctx, leaf.ProductID, u); err != nil {
			if !isConditionFailed(err) {
				return 0, 0, fmt.Errorf("decrement stock: %w", err)
			}
			log.Printf("[inventory] %s changed during floor decrement (attempt %d/%d)", leaf, attempt, maxCASAttempts)
			continue
		}
		return next, short, nil
	}
	return 0, 0, ErrConcurrentModification
}

// DecrementPlan is the set of product updates that take an order's quantities out of stock.
// Items[i] updates one product; Groups[i] lists the leaves it decrements.
type DecrementPlan struct {
	Items  []types.TransactWriteItem
	Groups [][]Decrement
}

// DecrementTransactItems builds one conditional Update per product for use inside a
// TransactWriteItems call. Repeated leaves are summed, so one product never appears twice.
func (s *Store) DecrementTransactItems(lines []Decrement) (DecrementPlan, error) {
	var (
		order  []string
		groups = map[string][]Decrement{}
	)
	for _, d := range lines {
		if d.Quantity <= 0 {
			return DecrementPlan{}, fmt.Errorf("%w: %s", ErrInvalidQuantity, d.Leaf)
		}
		if !d.Leaf.valid() {
			return DecrementPlan{}, fmt.Errorf("%w: %s", ErrLeafNotFound, d.Leaf)
		}
		g, seen := groups[d.Leaf.ProductID]
		if !seen {
			order = append(order, d.Leaf.ProductID)
		}
		merged := false
		for i := range g {
			if g[i].Leaf == d.Leaf {
				g[i].Quantity += d.Quantity
				merged = true
				break
			}
		}
		if !merged {
			g = append(g, d)
		}
		groups[d.Leaf.ProductID] = g
	}

	now := s.nowFunc()
	plan := DecrementPlan{}
	for _, productID := range order {
		g := groups[productID]
		u := newUpdate()
		for i, d := range g {
			sfx := strconv.Itoa(i)
			path := u.leafPath(d.Leaf, sfx)
			amt := u.value(":a"+sfx, numberInt(d.Quantity))
			u.set(path + " = " + path + " - " + amt)
			u.require(path + " >= " + amt)
		}
		u.require("attribute_exists(" + u.name("#pk", "product_id") + ")")
		u.touch(now)
		plan.Items = append(plan.Items, types.TransactWriteItem{
			Update: &types.Update{
				TableName:                 &s.tableName,
				Key:                       s.key(productID),
				UpdateExpression:          awsString(u.expression()),
				ConditionExpression:       u.condition(),
				ExpressionAttributeNames:  u.names,
				ExpressionAttributeValues: u.values,
			},
		})
		plan.Groups = append(plan.Groups, g)
	}
	return plan, nil
}

// Shortfalls re-reads a product and reports every leaf of group it cannot cover.
func (s *Store) Shortfalls(ctx context.Context, group []Decrement) ([]InsufficientStockError, error) {
	if len(group) == 0 {
		return nil, nil
	}
	p, err := s.Get(ctx, group[0].Leaf.ProductID)
	if err != nil {
		return nil, err
	}
	var out []InsufficientStockError
	for _, d := range group {
		available := 0
		if p != nil {
			available, _ = d.Leaf.Quantity(*p)
		}
		if available < d.Quantity {
			out = append(out, InsufficientStockError{Leaf: d.Leaf, Requested: d.Quantity, Available: available})
		}
	}
	return out, nil
}

// AddVariant adds a color. A flat product is converted to the variant model. sized colors
// start with DefaultSizes at zero, legacy colors with a single zero counter.
func (s *Store) AddVariant(ctx context.Context, productID, color string, images []string, sized bool) (*Product, error) {
	color = strings.TrimSpace(color)
	if color == "" {
		return nil, fmt.Errorf("%w: color is required", ErrInvalidProduct)
	}
	if len(images) == 0 {
		return nil, ErrImagesRequired
	}
	v := Variant{Images: images}
	if sized {
		v.Sizes = map[string]int{}
		for _, size := range DefaultSizes {
			v.Sizes[size] = 0
		}
	} else {
		zero := 0
		v.Stock = &zero
	}

	p, err := s.Get(ctx, productID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrNotFound
	}

	u := newUpdate()
	variants := u.name("#v", "variants")
	switch p.StockModel() {
	case FlatStock:
		av, err := attributevalue.Marshal(map[string]Variant{color: v})
		if err != nil {
			return nil, fmt.Errorf("marshal variants: %w", err)
		}
		u.set(variants + " = " + u.value(":variants", av))
		u.remove(u.name("#stk", "stock"))
		u.require("attribute_not_exists(" + variants + ")")
	case SizedVariants:
		av, err := attributevalue.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal variant: %w", err)
		}
		path := u.colorPath(color, "")
		u.set(path + " = " + u.value(":variant", av))
		u.require("attribute_exists(" + variants + ")")
		u.require("attribute_not_exists(" + path + ")")
	}
	u.set(u.name("#hc", "has_colors") + " = " + u.value(":hc", &types.AttributeValueMemberBOOL{Value: true}))
	u.touch(s.nowFunc())

	updated, err := s.apply(ctx, productID, u)
	if err != nil {
		if !isConditionFailed(err) {
			return nil, fmt.Errorf("add variant: %w", err)
		}
		current, gerr := s.Get(ctx, productID)
		switch {
		case gerr != nil:
			return nil, gerr
		case current == nil:
			return nil, ErrNotFound
		}
		if _, exists := current.Variants[color]; exists {
			return nil, ErrVariantExists
		}
		return nil, ErrConcurrentModification
	}
	return updated, nil
}

// RenameVariant moves a color to a new name, optionally replacing its images. The move is
// guarded by the product version and retried on conflict.
func (s *Store) RenameVariant(ctx context.Context, productID, oldColor, newColor string, images []string) (*Product, error) {
	newColor = strings.TrimSpace(newColor)
	if newColor == "" {
		return nil, fmt.Errorf("%w: color is required", ErrInvalidProduct)
	}
	if images != nil && len(images) == 0 {
		return nil, ErrImagesRequired
	}
	for attempt := 1; attempt <= maxCASAttempts; attempt++ {
		p, err := s.Get(ctx, productID)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, ErrNotFound
		}
		v, ok := p.Variants[oldColor]
		if !ok {
			return nil, ErrVariantNotFound
		}
		if newColor != oldColor {
			if _, taken := p.Variants[newColor]; taken {
				return nil, ErrVariantExists
			}
		}
		if images != nil {
			v.Images = images
		}
		av, err := attributevalue.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal variant: %w", err)
		}

		u := newUpdate()
		oldPath := u.colorPath(oldColor, "0")
		if newColor == oldColor {
			u.set(oldPath + " = " + u.value(":variant", av))
		} else {
			u.set(u.colorPath(newColor, "1") + " = " + u.value(":variant", av))
			u.remove(oldPath)
		}
		u.touch(s.nowFunc())
		u.require("#ver = " + u.value(":ver", numberInt64(p.Version)))

		updated, err := s.apply(ctx, productID, u)
		if err == nil {
			return updated, nil
		}
		if !isConditionFailed(err) {
			return nil, fmt.Errorf("rename variant: %w", err)
		}
		log.Printf("[inventory] product %s changed during variant rename (attempt %d/%d)", productID, attempt, maxCASAttempts)
	}
	return nil, ErrConcurrentModification
}

// DeleteVariant removes a color and all of its stock.
func (s *Store) DeleteVariant(ctx context.Context, productID, color string) (*Product, error) {
	u := newUpdate()
	path := u.colorPath(color, "")
	u.remove(path)
	u.require("attribute_exists(" + path + ")")
	u.touch(s.nowFunc())

	p, err := s.apply(ctx, productID, u)
	if err != nil {
		if !isConditionFailed(err) {
			return nil, fmt.Errorf("delete variant: %w", err)
		}
		current, gerr := s.Get(ctx, productID)
		switch {
		case gerr != nil:
			return nil, gerr
		case current == nil:
			return nil, ErrNotFound
		}
		return nil, ErrVariantNotFound
	}
	return p, nil
}

// AddSize adds a size to a sized color. Legacy colors are refused with ErrWrongStockModel.
func (s *Store) AddSize(ctx context.Context, productID, color, size string, qty int) (*Product, error) {
	size = strings.TrimSpace(size)
	if size == "" {
		return nil, fmt.Errorf("%w: size is required", ErrInvalidProduct)
	}
	if qty < 0 {
		qty = 0
	}
	u := newUpdate()
	sizes := u.sizesPath(color)
	path := sizes + "." + u.name("#s", size)
	u.set(path + " = " + u.value(":q", numberInt(qty)))
	u.require("attribute_exists(" + sizes + ")")
	u.require("attribute_not_exists(" + path + ")")
	u.touch(s.nowFunc())

	p, err := s.apply(ctx, productID, u)
	if err != nil {
		if !isConditionFailed(err) {
			return nil, fmt.Errorf("add size: %w", err)
		}
		return nil, s.sizeError(ctx, productID, color, size)
	}
	return p, nil
}

// DeleteSize removes a size from a sized color. Removing a size that is not there is a no-op.
func (s *Store) DeleteSize(ctx context.Context, productID, color, size string) (*Product, error) {
	u := newUpdate()
	sizes := u.sizesPath(color)
	u.remove(sizes + "." + u.name("#s", size))
	u.require("attribute_exists(" + sizes + ")")
	u.touch(s.nowFunc())

	p, err := s.apply(ctx, productID, u)
	if err != nil {
		if !isConditionFailed(err) {
			return nil, fmt.Errorf("delete size: %w", err)
		}
		return nil, s.sizeError(ctx, productID, color, "")
	}
	return p, nil
}

// apply runs a guarded UpdateItem against an existing product and returns the new image.
func (s *Store) apply(ctx context.Context, productID string, u *update) (*Product, error) {
	u.require("attribute_exists(" + u.name("#pk", "product_id") + ")")
	out, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                 &s.tableName,
		Key:                       s.key(productID),
		UpdateExpression:          awsString(u.expression()),
		ConditionExpression:       u.condition(),
		ExpressionAttributeNames:  u.names,
		ExpressionAttributeValues: u.values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		return nil, err
	}
	var p Product
	if err := attributevalue.UnmarshalMap(out.Attributes, &p); err != nil {
		return nil, fmt.Errorf("unmarshal product: %w", err)
	}
	return &p, nil
}

// leafError explains a failed leaf condition from a fresh read.
func (s *Store) leafError(ctx context.Context, leaf Leaf, requested int) error {
	p, err := s.Get(ctx, leaf.ProductID)
	if err != nil {
		return err
	}
	if p == nil {
		return ErrNotFound
	}
	available, ok := leaf.Quantity(*p)
	if !ok {
		return fmt.Errorf("%w: %s", ErrLeafNotFound, leaf)
	}
	if requested > 0 && available < requested {
		return &InsufficientStockError{Leaf: leaf, Requested: requested, Available: available}
	}
	return ErrConcurrentModification
}

func (s *Store) sizeError(ctx context.Context, productID, color, size string) error {
	p, err := s.Get(ctx, productID)
	if err != nil {
		return err
	}
	if p == nil {
		return ErrNotFound
	}
	v, ok := p.Variants[color]
	if !ok {
		return ErrVariantNotFound
	}
	if v.Model() != SizedColor {
		return ErrWrongStockModel
	}
	if _, exists := v.Sizes[size]; exists && size != "" {
		return ErrSizeExists
	}
	return ErrConcurrentModification
}

func (l Leaf) valid() bool {
	return l.ProductID != "" && (l.Color != "" || l.Size == "")
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

func awsString(s string) *string { return &s }

func awsBool(b bool) *bool { return &b }
