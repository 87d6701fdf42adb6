package inventory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/imrishuroy/storefront-orderflow/internal/aws/awstest"
	"github.com/imrishuroy/storefront-orderflow/internal/pricing"
)

var fixedNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func newTestStore() (*Store, *awstest.DynamoDB) {
	db := awstest.NewDynamoDB()
	db.CreateTable("products", "product_id", "")
	s := NewStore(db, "products")
	s.nowFunc = func() time.Time { return fixedNow }
	return s, db
}

func intPtr(n int) *int { return &n }

// tb is the part of testing.TB that *rapid.T also provides.
type tb interface {
	Helper()
	Fatalf(format string, args ...interface{})
}

// seedTee creates a product with a sized color (Red) and a legacy color (Blue).
func seedTee(t tb, s *Store) *Product {
	t.Helper()
	p, err := s.Create(context.Background(), Product{
		ID:          "tee",
		Name:        "Classic Tee",
		Price:       500,
		Category:    "T-Shirts",
		ShowProduct: true,
		Variants: map[string]Variant{
			"Red":  {Images: []string{"red.jpg"}, Sizes: map[string]int{"S": 2, "M": 5}},
			"Blue": {Images: []string{"blue.jpg"}, Stock: intPtr(4)},
		},
	})
	if err != nil {
		t.Fatalf("seed tee: %v", err)
	}
	return p
}

func seedMug(t tb, s *Store, stock int) *Product {
	t.Helper()
	p, err := s.Create(context.Background(), Product{
		ID:       "mug",
		Name:     "Mug",
		Price:    600,
		Category: "Mugs",
		Stock:    intPtr(stock),
	})
	if err != nil {
		t.Fatalf("seed mug: %v", err)
	}
	return p
}

func mustGet(t tb, s *Store, id string) *Product {
	t.Helper()
	p, err := s.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get %s: %v", id, err)
	}
	if p == nil {
		t.Fatalf("product %s not found", id)
	}
	return p
}

func quantity(t tb, s *Store, l Leaf) int {
	t.Helper()
	q, ok := l.Quantity(*mustGet(t, s, l.ProductID))
	if !ok {
		t.Fatalf("leaf %s missing", l)
	}
	return q
}

func TestCreateAppliesDefaults(t *testing.T) {
	s, _ := newTestStore()
	p := seedMug(t, s, -3)

	assert.Equal(t, &pricing.GST{CGST: 6, SGST: 6, Total: 12}, p.GST)
	assert.Equal(t, "Mug from our mugs collection.", p.Description)
	assert.Equal(t, FlatStock, p.StockModel())
	assert.False(t, p.HasColors)
	assert.Equal(t, int64(1), p.Version)

	stored := mustGet(t, s, "mug")
	require.NotNil(t, stored.Stock)
	assert.Equal(t, 0, *stored.Stock, "negative stock is clamped")
	assert.True(t, stored.CreatedAt.Equal(fixedNow))
}

func TestCreateVariantProduct(t *testing.T) {
	s, _ := newTestStore()
	seedTee(t, s)

	p := mustGet(t, s, "tee")
	assert.Equal(t, SizedVariants, p.StockModel())
	assert.True(t, p.HasColors)
	assert.Nil(t, p.Stock)
	assert.Equal(t, SizedColor, p.Variants["Red"].Model())
	assert.Equal(t, LegacyColor, p.Variants["Blue"].Model())
	assert.Equal(t, pricing.GST{CGST: 2.5, SGST: 2.5, Total: 5}, p.Rates())
}

func TestCreateRejectsInvalidProducts(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()

	_, err := s.Create(ctx, Product{Name: "  "})
	assert.ErrorIs(t, err, ErrInvalidProduct)

	_, err = s.Create(ctx, Product{Name: "Cap", Price: -1})
	assert.ErrorIs(t, err, ErrInvalidProduct)

	_, err = s.Create(ctx, Product{Name: "Cap", Variants: map[string]Variant{"Black": {Stock: intPtr(1)}}})
	assert.ErrorIs(t, err, ErrImagesRequired)

	seedMug(t, s, 1)
	_, err = s.Create(ctx, Product{ID: "mug", Name: "Another Mug"})
	assert.ErrorIs(t, err, ErrInvalidProduct)
}

func TestCreateFillsEmptySizedColor(t *testing.T) {
	s, _ := newTestStore()
	p, err := s.Create(context.Background(), Product{
		Name:     "Hoodie",
		Category: "Hoodies",
		Variants: map[string]Variant{"Grey": {Images: []string{"grey.jpg"}, Sizes: map[string]int{}}},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, map[string]int{"S": 0, "M": 0, "L": 0, "XL": 0}, mustGet(t, s, p.ID).Variants["Grey"].Sizes)
}

func TestGetMissing(t *testing.T) {
	s, _ := newTestStore()
	p, err := s.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestListVisibleFeaturedFirst(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()
	for _, p := range []Product{
		{ID: "a", Name: "Zip Hoodie", Category: "Hoodies", ShowProduct: true},
		{ID: "b", Name: "Bottle", Category: "Bottles", ShowProduct: true, Featured: true},
		{ID: "c", Name: "Apron", Category: "Aprons"},
		{ID: "d", Name: "Beanie", Category: "Caps", ShowProduct: true},
	} {
		_, err := s.Create(ctx, p)
		require.NoError(t, err)
	}

	visible, err := s.List(ctx, ListOptions{VisibleOnly: true})
	require.NoError(t, err)
	var names []string
	for _, p := range visible {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"Bottle", "Beanie", "Zip Hoodie"}, names)

	all, err := s.List(ctx, ListOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	caps, err := s.List(ctx, ListOptions{Category: "Caps"})
	require.NoError(t, err)
	require.Len(t, caps, 1)
	assert.Equal(t, "d", caps[0].ID)
}

func TestUpdatePatch(t *testing.T) {
	s, _ := newTestStore()
	seedTee(t, s)
	ctx := context.Background()

	price := 650.0
	category := "Coffee Mugs"
	p, err := s.Update(ctx, "tee", Patch{Price: &price, Category: &category})
	require.NoError(t, err)
	assert.Equal(t, 650.0, p.Price)
	assert.Equal(t, &pricing.GST{CGST: 6, SGST: 6, Total: 12}, p.GST, "category change resets rates")
	assert.Equal(t, int64(2), p.Version)
	assert.Equal(t, 5, p.Variants["Red"].Sizes["M"], "stock untouched")

	custom := pricing.GST{CGST: 9, SGST: 9}
	p, err = s.Update(ctx, "tee", Patch{GST: &custom})
	require.NoError(t, err)
	assert.Equal(t, &pricing.GST{CGST: 9, SGST: 9, Total: 18}, p.GST)

	_, err = s.Update(ctx, "missing", Patch{Price: &price})
	assert.ErrorIs(t, err, ErrNotFound)

	negative := -1.0
	_, err = s.Update(ctx, "tee", Patch{Price: &negative})
	assert.ErrorIs(t, err, ErrInvalidProduct)
}

func TestSetVariantStock(t *testing.T) {
	s, _ := newTestStore()
	seedTee(t, s)
	seedMug(t, s, 2)
	ctx := context.Background()

	_, err := s.SetVariantStock(ctx, Leaf{ProductID: "tee", Color: "Red", Size: "S"}, 9)
	require.NoError(t, err)
	assert.Equal(t, 9, quantity(t, s, Leaf{ProductID: "tee", Color: "Red", Size: "S"}))

	_, err = s.SetVariantStock(ctx, Leaf{ProductID: "tee", Color: "Blue"}, -4)
	require.NoError(t, err)
	assert.Equal(t, 0, quantity(t, s, Leaf{ProductID: "tee", Color: "Blue"}))

	_, err = s.UpdateSizeQuantity(ctx, "tee", "Red", "M", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, quantity(t, s, Leaf{ProductID: "tee", Color: "Red", Size: "M"}))

	_, err = s.SetVariantStock(ctx, Leaf{ProductID: "mug"}, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, quantity(t, s, Leaf{ProductID: "mug"}))

	_, err = s.SetVariantStock(ctx, Leaf{ProductID: "tee", Color: "Red", Size: "XXL"}, 1)
	assert.ErrorIs(t, err, ErrLeafNotFound)

	_, err = s.SetVariantStock(ctx, Leaf{ProductID: "tee"}, 1)
	assert.ErrorIs(t, err, ErrLeafNotFound, "flat leaf on a variant product")

	_, err = s.SetVariantStock(ctx, Leaf{ProductID: "ghost"}, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDecrementStock(t *testing.T) {
	s, _ := newTestStore()
	seedTee(t, s)
	ctx := context.Background()
	leaf := Leaf{ProductID: "tee", Color: "Red", Size: "M"}

	remaining, err := s.DecrementStock(ctx, leaf, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, remaining)

	before := mustGet(t, s, "tee")
	_, err = s.DecrementStock(ctx, leaf, 4)
	var short *InsufficientStockError
	require.ErrorAs(t, err, &short)
	assert.Equal(t, InsufficientStockError{Leaf: leaf, Requested: 4, Available: 3}, *short)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	after := mustGet(t, s, "tee")
	assert.Equal(t, before.Version, after.Version, "failed decrement writes nothing")
	assert.Equal(t, 3, after.Variants["Red"].Sizes["M"])

	remaining, err = s.DecrementStock(ctx, Leaf{ProductID: "tee", Color: "Blue"}, 4)
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)
}

func TestDecrementStockErrors(t *testing.T) {
	s, _ := newTestStore()
	seedTee(t, s)
	ctx := context.Background()

	tests := []struct {
		name   string
		leaf   Leaf
		amount int
		want   error
	}{
		{"zero amount", Leaf{ProductID: "tee", Color: "Red", Size: "M"}, 0, ErrInvalidQuantity},
		{"unknown size", Leaf{ProductID: "tee", Color: "Red", Size: "XXL"}, 1, ErrLeafNotFound},
		{"unknown color", Leaf{ProductID: "tee", Color: "Green"}, 1, ErrLeafNotFound},
		{"size without color", Leaf{ProductID: "tee", Size: "M"}, 1, ErrLeafNotFound},
		{"flat leaf on variants", Leaf{ProductID: "tee"}, 1, ErrLeafNotFound},
		{"missing product", Leaf{ProductID: "ghost"}, 1, ErrNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.DecrementStock(ctx, tc.leaf, tc.amount)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestDecrementStockConcurrentNoOversell(t *testing.T) {
	s, _ := newTestStore()
	seedMug(t, s, 5)
	ctx := context.Background()
	leaf := Leaf{ProductID: "mug"}

	const buyers = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
		start     = make(chan struct{})
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := s.DecrementStock(ctx, leaf, 1)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrInsufficientStock):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 5, succeeded)
	assert.Equal(t, buyers-5, rejected)
	assert.Equal(t, 0, quantity(t, s, leaf))
}

func TestDecrementStockFloorProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s, _ := newTestStore()
		initial := rapid.IntRange(0, 50).Draw(t, "initial")
		seedMug(t, s, initial)
		amounts := rapid.SliceOfN(rapid.IntRange(1, 20), 1, 8).Draw(t, "amounts")

		want := initial
		for _, amount := range amounts {
			remaining, shortfall, err := s.DecrementStockFloor(context.Background(), Leaf{ProductID: "mug"}, amount)
			require.NoError(t, err)

			expectShort := 0
			if amount > want {
				expectShort = amount - want
			}
			want -= amount - expectShort
			if remaining != want || shortfall != expectShort {
				t.Fatalf("decrement %d: got remaining=%d shortfall=%d, want %d/%d", amount, remaining, shortfall, want, expectShort)
			}
			if remaining < 0 {
				t.Fatalf("stock went negative: %d", remaining)
			}
		}
		assert.Equal(t, want, quantity(t, s, Leaf{ProductID: "mug"}))
	})
}

// racingDynamo changes the leaf underneath the first UpdateItem it sees.
type racingDynamo struct {
	*awstest.DynamoDB
	once  sync.Once
	other *Store
	leaf  Leaf
}

func (r *racingDynamo) UpdateItem(ctx context.Context, in *dyn.UpdateItemInput, opts ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	r.once.Do(func() {
		if _, err := r.other.SetVariantStock(ctx, r.leaf, 1); err != nil {
			panic(err)
		}
	})
	return r.DynamoDB.UpdateItem(ctx, in, opts...)
}

func TestDecrementStockFloorRetriesAfterRace(t *testing.T) {
	base, db := newTestStore()
	seedTee(t, base)
	leaf := Leaf{ProductID: "tee", Color: "Red", Size: "M"}

	racer := &racingDynamo{DynamoDB: db, other: base, leaf: leaf}
	s := NewStore(racer, "products")

	remaining, shortfall, err := s.DecrementStockFloor(context.Background(), leaf, 3)
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)
	assert.Equal(t, 2, shortfall)
	assert.Equal(t, 0, quantity(t, base, leaf))
	assert.Equal(t, 3, db.Calls("UpdateItem"), "racing write, failed CAS, retried CAS")
}

func TestDecrementTransactItems(t *testing.T) {
	s, db := newTestStore()
	seedTee(t, s)
	seedMug(t, s, 3)
	ctx := context.Background()

	red := Leaf{ProductID: "tee", Color: "Red", Size: "M"}
	blue := Leaf{ProductID: "tee", Color: "Blue"}
	mug := Leaf{ProductID: "mug"}

	plan, err := s.DecrementTransactItems([]Decrement{
		{Leaf: red, Quantity: 1},
		{Leaf: mug, Quantity: 2},
		{Leaf: blue, Quantity: 1},
		{Leaf: red, Quantity: 2},
	})
	require.NoError(t, err)
	require.Len(t, plan.Items, 2, "one update per product")
	assert.Equal(t, [][]Decrement{
		{{Leaf: red, Quantity: 3}, {Leaf: blue, Quantity: 1}},
		{{Leaf: mug, Quantity: 2}},
	}, plan.Groups)

	_, err = db.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{TransactItems: plan.Items})
	require.NoError(t, err)
	assert.Equal(t, 2, quantity(t, s, red))
	assert.Equal(t, 3, quantity(t, s, blue))
	assert.Equal(t, 1, quantity(t, s, mug))
	assert.Equal(t, int64(2), mustGet(t, s, "tee").Version)
}

func TestDecrementTransactItemsShortfall(t *testing.T) {
	s, db := newTestStore()
	seedTee(t, s)
	ctx := context.Background()

	red := Leaf{ProductID: "tee", Color: "Red", Size: "S"}
	blue := Leaf{ProductID: "tee", Color: "Blue"}
	plan, err := s.DecrementTransactItems([]Decrement{{Leaf: red, Quantity: 3}, {Leaf: blue, Quantity: 1}})
	require.NoError(t, err)

	_, err = db.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{TransactItems: plan.Items})
	var tce *types.TransactionCanceledException
	require.ErrorAs(t, err, &tce)
	assert.Equal(t, 2, quantity(t, s, red), "nothing applied")
	assert.Equal(t, 4, quantity(t, s, blue), "nothing applied")

	short, err := s.Shortfalls(ctx, plan.Groups[0])
	require.NoError(t, err)
	assert.Equal(t, []InsufficientStockError{{Leaf: red, Requested: 3, Available: 2}}, short)
}

func TestDecrementTransactItemsRejectsBadLines(t *testing.T) {
	s, _ := newTestStore()
	_, err := s.DecrementTransactItems([]Decrement{{Leaf: Leaf{ProductID: "mug"}, Quantity: 0}})
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = s.DecrementTransactItems([]Decrement{{Leaf: Leaf{ProductID: "mug", Size: "M"}, Quantity: 1}})
	assert.ErrorIs(t, err, ErrLeafNotFound)
}

func TestAddVariant(t *testing.T) {
	s, _ := newTestStore()
	seedTee(t, s)
	seedMug(t, s, 4)
	ctx := context.Background()

	p, err := s.AddVariant(ctx, "tee", "Green", []string{"green.jpg"}, true)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"S": 0, "M": 0, "L": 0, "XL": 0}, p.Variants["Green"].Sizes)
	assert.Equal(t, 5, p.Variants["Red"].Sizes["M"], "existing colors untouched")

	p, err = s.AddVariant(ctx, "mug", "White", []string{"white.jpg"}, false)
	require.NoError(t, err)
	assert.Equal(t, SizedVariants, p.StockModel(), "flat product converted")
	assert.True(t, p.HasColors)
	assert.Nil(t, p.Stock)
	require.NotNil(t, p.Variants["White"].Stock)
	assert.Equal(t, 0, *p.Variants["White"].Stock)

	_, err = s.AddVariant(ctx, "tee", "Red", []string{"red2.jpg"}, true)
	assert.ErrorIs(t, err, ErrVariantExists)

	_, err = s.AddVariant(ctx, "tee", "Yellow", nil, true)
	assert.ErrorIs(t, err, ErrImagesRequired)

	_, err = s.AddVariant(ctx, "ghost", "Yellow", []string{"y.jpg"}, true)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRenameVariant(t *testing.T) {
	s, _ := newTestStore()
	seedTee(t, s)
	ctx := context.Background()

	p, err := s.RenameVariant(ctx, "tee", "Red", "Crimson", []string{"crimson.jpg"})
	require.NoError(t, err)
	assert.NotContains(t, p.Variants, "Red")
	assert.Equal(t, Variant{Images: []string{"crimson.jpg"}, Sizes: map[string]int{"S": 2, "M": 5}}, p.Variants["Crimson"])

	p, err = s.RenameVariant(ctx, "tee", "Blue", "Blue", []string{"navy.jpg"})
	require.NoError(t, err)
	assert.Equal(t, []string{"navy.jpg"}, p.Variants["Blue"].Images)
	assert.Equal(t, 4, *p.Variants["Blue"].Stock)

	_, err = s.RenameVariant(ctx, "tee", "Crimson", "Blue", nil)
	assert.ErrorIs(t, err, ErrVariantExists)

	_, err = s.RenameVariant(ctx, "tee", "Red", "Maroon", nil)
	assert.ErrorIs(t, err, ErrVariantNotFound)

	_, err = s.RenameVariant(ctx, "tee", "Blue", "Navy", []string{})
	assert.ErrorIs(t, err, ErrImagesRequired)
}

func TestDeleteVariant(t *testing.T) {
	s, _ := newTestStore()
	seedTee(t, s)
	ctx := context.Background()

	p, err := s.DeleteVariant(ctx, "tee", "Blue")
	require.NoError(t, err)
	assert.NotContains(t, p.Variants, "Blue")

	_, err = s.DeleteVariant(ctx, "tee", "Blue")
	assert.ErrorIs(t, err, ErrVariantNotFound)

	_, err = s.DeleteVariant(ctx, "ghost", "Blue")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSizes(t *testing.T) {
	s, _ := newTestStore()
	seedTee(t, s)
	ctx := context.Background()

	p, err := s.AddSize(ctx, "tee", "Red", "XL", -2)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Variants["Red"].Sizes["XL"])

	_, err = s.AddSize(ctx, "tee", "Red", "M", 1)
	assert.ErrorIs(t, err, ErrSizeExists)

	_, err = s.AddSize(ctx, "tee", "Blue", "M", 1)
	assert.ErrorIs(t, err, ErrWrongStockModel)

	_, err = s.AddSize(ctx, "tee", "Green", "M", 1)
	assert.ErrorIs(t, err, ErrVariantNotFound)

	p, err = s.DeleteSize(ctx, "tee", "Red", "S")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"M": 5, "XL": 0}, p.Variants["Red"].Sizes)

	_, err = s.DeleteSize(ctx, "tee", "Red", "S")
	assert.NoError(t, err, "deleting an absent size is a no-op")

	_, err = s.DeleteSize(ctx, "ghost", "Red", "S")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeriveDefaults(t *testing.T) {
	tests := []struct {
		category, name string
		want           Defaults
	}{
		{"T-Shirts", "Classic Tee", Defaults{GST: pricing.GST{CGST: 2.5, SGST: 2.5, Total: 5}, Description: "Classic Tee in soft, breathable fabric, cut for an easy everyday fit."}},
		{"Mugs", "Mug", Defaults{GST: pricing.GST{CGST: 6, SGST: 6, Total: 12}, Description: "Mug from our mugs collection."}},
		{"", "Sticker", Defaults{GST: pricing.GST{CGST: 6, SGST: 6, Total: 12}, Description: "Sticker."}},
		{"Hoodies", "", Defaults{GST: pricing.GST{CGST: 2.5, SGST: 2.5, Total: 5}}},
	}
	for _, tc := range tests {
		t.Run(tc.category+"/"+tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DeriveDefaults(tc.category, tc.name))
		})
	}
}

func TestLeafQuantity(t *testing.T) {
	p := Product{
		Variants: map[string]Variant{
			"Red":  {Sizes: map[string]int{"M": 3}},
			"Blue": {Stock: intPtr(2)},
		},
	}
	tests := []struct {
		leaf Leaf
		want int
		ok   bool
	}{
		{Leaf{Color: "Red", Size: "M"}, 3, true},
		{Leaf{Color: "Red", Size: "L"}, 0, false},
		{Leaf{Color: "Red"}, 0, false},
		{Leaf{Color: "Blue"}, 2, true},
		{Leaf{Color: "Blue", Size: "M"}, 0, false},
		{Leaf{}, 0, false},
	}
	for _, tc := range tests {
		q, ok := tc.leaf.Quantity(p)
		assert.Equal(t, tc.want, q, tc.leaf.String())
		assert.Equal(t, tc.ok, ok, tc.leaf.String())
	}

	flat := Product{Stock: intPtr(6)}
	q, ok := Leaf{}.Quantity(flat)
	assert.True(t, ok)
	assert.Equal(t, 6, q)
	_, ok = Leaf{Color: "Red"}.Quantity(flat)
	assert.False(t, ok)
}

func TestLeafPath(t *testing.T) {
	assert.Equal(t, "stock", Leaf{ProductID: "p"}.Path())
	assert.Equal(t, "variants.Blue.stock", Leaf{ProductID: "p", Color: "Blue"}.Path())
	assert.Equal(t, "variants.Red.sizes.M", Leaf{ProductID: "p", Color: "Red", Size: "M"}.Path())
}
