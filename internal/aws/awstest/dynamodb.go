// Package awstest provides in-memory stand-ins for the AWS clients used by the stores.
//
// The DynamoDB fake understands the expression subset the stores emit:
//
//	SET p = :v, p = p - :v, p = p + :v      REMOVE p, p
//	attribute_exists(p) / attribute_not_exists(p) / p <op> :v   joined with AND
//
// where p is a dotted document path of #name placeholders or literal attribute names.
// All calls are serialised by one mutex, which gives conditional writes and transactions
// the same all-or-nothing behaviour as the real service.
package awstest

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

type table struct {
	pk, sk string
	items  map[string]map[string]types.AttributeValue
}

// DynamoDB is an in-memory DynamoDB.
type DynamoDB struct {
	mu     sync.Mutex
	tables map[string]*table
	calls  map[string]int
	fail   map[string]error
}

// NewDynamoDB returns an empty fake with no tables.
func NewDynamoDB() *DynamoDB {
	return &DynamoDB{
		tables: map[string]*table{},
		calls:  map[string]int{},
		fail:   map[string]error{},
	}
}

// CreateTable registers a table keyed by pk (and sk when non-empty).
func (d *DynamoDB) CreateTable(name, pk, sk string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tables[name] = &table{pk: pk, sk: sk, items: map[string]map[string]types.AttributeValue{}}
}

// FailNext makes the next call of op ("GetItem", "TransactWriteItems", ...) return err.
func (d *DynamoDB) FailNext(op string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fail[op] = err
}

// Calls reports how many times op was invoked.
func (d *DynamoDB) Calls(op string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[op]
}

// Seed stores item as-is, overwriting any existing item with the same key.
func (d *DynamoDB) Seed(tableName string, item map[string]types.AttributeValue) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t := d.mustTable(tableName)
	k, err := t.keyOf(item)
	if err != nil {
		panic(err)
	}
	t.items[k] = copyItem(item)
}

// Item returns a copy of the stored item for the given key values, or nil.
func (d *DynamoDB) Item(tableName string, keyValues ...string) map[string]types.AttributeValue {
	d.mu.Lock()
	defer d.mu.Unlock()
	t := d.mustTable(tableName)
	item, ok := t.items[strings.Join(keyValues, "\x00")]
	if !ok {
		return nil
	}
	return copyItem(item)
}

// Len reports the number of items stored in a table.
func (d *DynamoDB) Len(tableName string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.mustTable(tableName).items)
}

func (d *DynamoDB) mustTable(name string) *table {
	t, ok := d.tables[name]
	if !ok {
		panic(fmt.Sprintf("awstest: table %q not created", name))
	}
	return t
}

func (d *DynamoDB) enter(op string) error {
	d.calls[op]++
	if err, ok := d.fail[op]; ok {
		delete(d.fail, op)
		return err
	}
	return nil
}

func (d *DynamoDB) lookup(name *string) (*table, error) {
	if name == nil {
		return nil, validationError("missing table name")
	}
	t, ok := d.tables[*name]
	if !ok {
		return nil, &types.ResourceNotFoundException{Message: strPtr("table not found: " + *name)}
	}
	return t, nil
}

// GetItem implements aws.DynamoDBAPI.
func (d *DynamoDB) GetItem(ctx context.Context, in *dyn.GetItemInput, _ ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("GetItem"); err != nil {
		return nil, err
	}
	t, err := d.lookup(in.TableName)
	if err != nil {
		return nil, err
	}
	k, err := t.keyOf(in.Key)
	if err != nil {
		return nil, err
	}
	item, ok := t.items[k]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: copyItem(item)}, nil
}

// PutItem implements aws.DynamoDBAPI.
func (d *DynamoDB) PutItem(ctx context.Context, in *dyn.PutItemInput, _ ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("PutItem"); err != nil {
		return nil, err
	}
	t, err := d.lookup(in.TableName)
	if err != nil {
		return nil, err
	}
	k, err := t.keyOf(in.Item)
	if err != nil {
		return nil, err
	}
	ok, err := evalCondition(in.ConditionExpression, t.items[k], in.ExpressionAttributeNames, in.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &types.ConditionalCheckFailedException{Message: strPtr("The conditional request failed")}
	}
	t.items[k] = copyItem(in.Item)
	return &dyn.PutItemOutput{}, nil
}

// UpdateItem implements aws.DynamoDBAPI. Missing items are created from the key, as DynamoDB does.
func (d *DynamoDB) UpdateItem(ctx context.Context, in *dyn.UpdateItemInput, _ ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("UpdateItem"); err != nil {
		return nil, err
	}
	t, err := d.lookup(in.TableName)
	if err != nil {
		return nil, err
	}
	k, err := t.keyOf(in.Key)
	if err != nil {
		return nil, err
	}
	current := t.items[k]
	ok, err := evalCondition(in.ConditionExpression, current, in.ExpressionAttributeNames, in.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &types.ConditionalCheckFailedException{Message: strPtr("The conditional request failed")}
	}
	next := copyItem(current)
	if next == nil {
		next = copyItem(in.Key)
	}
	if err := applyUpdate(in.UpdateExpression, next, in.ExpressionAttributeNames, in.ExpressionAttributeValues); err != nil {
		return nil, err
	}
	t.items[k] = next
	out := &dyn.UpdateItemOutput{}
	if in.ReturnValues != types.ReturnValueNone && in.ReturnValues != "" {
		out.Attributes = copyItem(next)
	}
	return out, nil
}

// Query implements aws.DynamoDBAPI. The key condition is evaluated like a filter.
func (d *DynamoDB) Query(ctx context.Context, in *dyn.QueryInput, _ ...func(*dyn.Options)) (*dyn.QueryOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("Query"); err != nil {
		return nil, err
	}
	t, err := d.lookup(in.TableName)
	if err != nil {
		return nil, err
	}
	items, err := t.match(in.KeyConditionExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	if in.FilterExpression != nil {
		items, err = filter(items, in.FilterExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues)
		if err != nil {
			return nil, err
		}
	}
	if in.ScanIndexForward != nil && !*in.ScanIndexForward {
		for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
			items[i], items[j] = items[j], items[i]
		}
	}
	return &dyn.QueryOutput{Items: items, Count: int32(len(items))}, nil
}

// Scan implements aws.DynamoDBAPI. Everything is returned in one page.
func (d *DynamoDB) Scan(ctx context.Context, in *dyn.ScanInput, _ ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("Scan"); err != nil {
		return nil, err
	}
	t, err := d.lookup(in.TableName)
	if err != nil {
		return nil, err
	}
	items, err := t.match(in.FilterExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	return &dyn.ScanOutput{Items: items, Count: int32(len(items))}, nil
}

type staged struct {
	t    *table
	key  string
	item map[string]types.AttributeValue // nil deletes
}

// TransactWriteItems implements aws.DynamoDBAPI with all-or-nothing semantics. A failed
// condition yields TransactionCanceledException with one CancellationReason per action.
func (d *DynamoDB) TransactWriteItems(ctx context.Context, in *dyn.TransactWriteItemsInput, _ ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("TransactWriteItems"); err != nil {
		return nil, err
	}
	if len(in.TransactItems) == 0 || len(in.TransactItems) > 100 {
		return nil, validationError("transaction must contain 1..100 actions")
	}

	var (
		plan    []staged
		reasons = make([]types.CancellationReason, len(in.TransactItems))
		failed  bool
		seen    = map[string]bool{}
	)
	for i, it := range in.TransactItems {
		var (
			tableName *string
			key       map[string]types.AttributeValue
			cond      *string
			names     map[string]string
			values    map[string]types.AttributeValue
		)
		switch {
		case it.Put != nil:
			tableName, key, cond, names, values = it.Put.TableName, it.Put.Item, it.Put.ConditionExpression, it.Put.ExpressionAttributeNames, it.Put.ExpressionAttributeValues
		case it.Update != nil:
			tableName, key, cond, names, values = it.Update.TableName, it.Update.Key, it.Update.ConditionExpression, it.Update.ExpressionAttributeNames, it.Update.ExpressionAttributeValues
		case it.Delete != nil:
			tableName, key, cond, names, values = it.Delete.TableName, it.Delete.Key, it.Delete.ConditionExpression, it.Delete.ExpressionAttributeNames, it.Delete.ExpressionAttributeValues
		case it.ConditionCheck != nil:
			tableName, key, cond, names, values = it.ConditionCheck.TableName, it.ConditionCheck.Key, it.ConditionCheck.ConditionExpression, it.ConditionCheck.ExpressionAttributeNames, it.ConditionCheck.ExpressionAttributeValues
		default:
			return nil, validationError("empty transact item")
		}
		t, err := d.lookup(tableName)
		if err != nil {
			return nil, err
		}
		k, err := t.keyOf(key)
		if err != nil {
			return nil, err
		}
		id := *tableName + "\x01" + k
		if seen[id] {
			return nil, validationError("Transaction request cannot include multiple operations on one item")
		}
		seen[id] = true

		current := t.items[k]
		ok, err := evalCondition(cond, current, names, values)
		if err != nil {
			return nil, err
		}
		if !ok {
			reasons[i] = types.CancellationReason{Code: strPtr("ConditionalCheckFailed"), Message: strPtr("The conditional request failed")}
			failed = true
			continue
		}
		reasons[i] = types.CancellationReason{Code: strPtr("None")}

		switch {
		case it.Put != nil:
			plan = append(plan, staged{t: t, key: k, item: copyItem(it.Put.Item)})
		case it.Update != nil:
			next := copyItem(current)
			if next == nil {
				next = copyItem(key)
			}
			if err := applyUpdate(it.Update.UpdateExpression, next, names, values); err != nil {
				return nil, err
			}
			plan = append(plan, staged{t: t, key: k, item: next})
		case it.Delete != nil:
			plan = append(plan, staged{t: t, key: k})
		}
	}
	if failed {
		return nil, &types.TransactionCanceledException{
			Message:             strPtr("Transaction cancelled, please refer cancellation reasons for specific reasons"),
			CancellationReasons: reasons,
		}
	}
	for _, s := range plan {
		if s.item == nil {
			delete(s.t.items, s.key)
			continue
		}
		s.t.items[s.key] = s.item
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}

func (t *table) keyOf(m map[string]types.AttributeValue) (string, error) {
	pk, err := scalarString(m[t.pk])
	if err != nil {
		return "", validationError("missing key attribute " + t.pk)
	}
	if t.sk == "" {
		return pk, nil
	}
	sk, err := scalarString(m[t.sk])
	if err != nil {
		return "", validationError("missing key attribute " + t.sk)
	}
	return pk + "\x00" + sk, nil
}

func (t *table) match(cond *string, names map[string]string, values map[string]types.AttributeValue) ([]map[string]types.AttributeValue, error) {
	keys := make([]string, 0, len(t.items))
	for k := range t.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]map[string]types.AttributeValue, 0, len(keys))
	for _, k := range keys {
		ok, err := evalCondition(cond, t.items[k], names, values)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, copyItem(t.items[k]))
		}
	}
	return out, nil
}

func filter(items []map[string]types.AttributeValue, cond *string, names map[string]string, values map[string]types.AttributeValue) ([]map[string]types.AttributeValue, error) {
	out := items[:0]
	for _, it := range items {
		ok, err := evalCondition(cond, it, names, values)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, it)
		}
	}
	return out, nil
}

// --- expressions ---

var (
	funcRe    = regexp.MustCompile(`^(attribute_exists|attribute_not_exists)\((.+)\)$`)
	clauseRe  = regexp.MustCompile(`\b(SET|REMOVE)\s`)
	compareOp = []string{">=", "<=", "<>", "=", ">", "<"}
)

func evalCondition(expr *string, item map[string]types.AttributeValue, names map[string]string, values map[string]types.AttributeValue) (bool, error) {
	if expr == nil || strings.TrimSpace(*expr) == "" {
		return true, nil
	}
	for _, term := range strings.Split(*expr, " AND ") {
		term = strings.TrimSpace(term)
		ok, err := evalTerm(term, item, names, values)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func evalTerm(term string, item map[string]types.AttributeValue, names map[string]string, values map[string]types.AttributeValue) (bool, error) {
	if m := funcRe.FindStringSubmatch(term); m != nil {
		segs, err := resolvePath(m[2], names)
		if err != nil {
			return false, err
		}
		_, exists := getPath(item, segs)
		if m[1] == "attribute_exists" {
			return exists, nil
		}
		return !exists, nil
	}
	for _, op := range compareOp {
		idx := strings.Index(term, " "+op+" ")
		if idx < 0 {
			continue
		}
		lhs, lok, err := operand(strings.TrimSpace(term[:idx]), item, names, values)
		if err != nil {
			return false, err
		}
		rhs, rok, err := operand(strings.TrimSpace(term[idx+len(op)+2:]), item, names, values)
		if err != nil {
			return false, err
		}
		if !lok || !rok {
			return false, nil
		}
		return compare(lhs, rhs, op)
	}
	return false, validationError("unsupported condition term: " + term)
}

func applyUpdate(expr *string, item map[string]types.AttributeValue, names map[string]string, values map[string]types.AttributeValue) error {
	if expr == nil {
		return validationError("missing update expression")
	}
	s := *expr
	locs := clauseRe.FindAllStringSubmatchIndex(s, -1)
	if len(locs) == 0 {
		return validationError("unsupported update expression: " + s)
	}
	for i, loc := range locs {
		keyword := s[loc[2]:loc[3]]
		end := len(s)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		body := strings.TrimSpace(s[loc[1]:end])
		for _, part := range strings.Split(body, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			var err error
			if keyword == "SET" {
				err = applySet(part, item, names, values)
			} else {
				err = applyRemove(part, item, names)
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func applySet(assign string, item map[string]types.AttributeValue, names map[string]string, values map[string]types.AttributeValue) error {
	eq := strings.Index(assign, " = ")
	if eq < 0 {
		return validationError("unsupported SET action: " + assign)
	}
	segs, err := resolvePath(strings.TrimSpace(assign[:eq]), names)
	if err != nil {
		return err
	}
	rhs := strings.TrimSpace(assign[eq+3:])

	var val types.AttributeValue
	switch {
	case strings.Contains(rhs, " + "), strings.Contains(rhs, " - "):
		op := " + "
		if strings.Contains(rhs, " - ") {
			op = " - "
		}
		parts := strings.SplitN(rhs, op, 2)
		a, aok, err := operand(strings.TrimSpace(parts[0]), item, names, values)
		if err != nil {
			return err
		}
		b, bok, err := operand(strings.TrimSpace(parts[1]), item, names, values)
		if err != nil {
			return err
		}
		if !aok || !bok {
			return validationError("The provided expression refers to an attribute that does not exist in the item")
		}
		val, err = arithmetic(a, b, strings.TrimSpace(op))
		if err != nil {
			return err
		}
	default:
		v, ok, err := operand(rhs, item, names, values)
		if err != nil {
			return err
		}
		if !ok {
			return validationError("The provided expression refers to an attribute that does not exist in the item")
		}
		val = copyValue(v)
	}
	return setPath(item, segs, val)
}

func applyRemove(path string, item map[string]types.AttributeValue, names map[string]string) error {
	segs, err := resolvePath(path, names)
	if err != nil {
		return err
	}
	parent := item
	for _, s := range segs[:len(segs)-1] {
		next, ok := parent[s].(*types.AttributeValueMemberM)
		if !ok {
			return nil
		}
		parent = next.Value
	}
	delete(parent, segs[len(segs)-1])
	return nil
}

func resolvePath(path string, names map[string]string) ([]string, error) {
	raw := strings.Split(strings.TrimSpace(path), ".")
	segs := make([]string, 0, len(raw))
	for _, r := range raw {
		if strings.HasPrefix(r, "#") {
			n, ok := names[r]
			if !ok {
				return nil, validationError("undefined expression attribute name " + r)
			}
			segs = append(segs, n)
			continue
		}
		if r == "" {
			return nil, validationError("empty path segment in " + path)
		}
		segs = append(segs, r)
	}
	return segs, nil
}

func operand(tok string, item map[string]types.AttributeValue, names map[string]string, values map[string]types.AttributeValue) (types.AttributeValue, bool, error) {
	if strings.HasPrefix(tok, ":") {
		v, ok := values[tok]
		if !ok {
			return nil, false, validationError("undefined expression attribute value " + tok)
		}
		return v, true, nil
	}
	segs, err := resolvePath(tok, names)
	if err != nil {
		return nil, false, err
	}
	v, ok := getPath(item, segs)
	return v, ok, nil
}

func getPath(item map[string]types.AttributeValue, segs []string) (types.AttributeValue, bool) {
	if item == nil {
		return nil, false
	}
	cur := item
	for i, s := range segs {
		v, ok := cur[s]
		if !ok {
			return nil, false
		}
		if i == len(segs)-1 {
			return v, true
		}
		m, ok := v.(*types.AttributeValueMemberM)
		if !ok {
			return nil, false
		}
		cur = m.Value
	}
	return nil, false
}

func setPath(item map[string]types.AttributeValue, segs []string, val types.AttributeValue) error {
	cur := item
	for _, s := range segs[:len(segs)-1] {
		m, ok := cur[s].(*types.AttributeValueMemberM)
		if !ok {
			return validationError("The document path provided in the update expression is invalid for update")
		}
		cur = m.Value
	}
	cur[segs[len(segs)-1]] = val
	return nil
}

func compare(a, b types.AttributeValue, op string) (bool, error) {
	an, aNum := a.(*types.AttributeValueMemberN)
	bn, bNum := b.(*types.AttributeValueMemberN)
	var c int
	switch {
	case aNum && bNum:
		x, err := strconv.ParseFloat(an.Value, 64)
		if err != nil {
			return false, err
		}
		y, err := strconv.ParseFloat(bn.Value, 64)
		if err != nil {
			return false, err
		}
		switch {
		case x < y:
			c = -1
		case x > y:
			c = 1
		}
	default:
		as, aerr := scalarString(a)
		bs, berr := scalarString(b)
		if aerr != nil || berr != nil {
			if op == "=" || op == "<>" {
				eq := fmt.Sprintf("%#v", a) == fmt.Sprintf("%#v", b)
				return eq == (op == "="), nil
			}
			return false, nil
		}
		if fmt.Sprintf("%T", a) != fmt.Sprintf("%T", b) {
			return op == "<>", nil
		}
		c = strings.Compare(as, bs)
	}
	switch op {
	case "=":
		return c == 0, nil
	case "<>":
		return c != 0, nil
	case ">=":
		return c >= 0, nil
	case "<=":
		return c <= 0, nil
	case ">":
		return c > 0, nil
	case "<":
		return c < 0, nil
	}
	return false, validationError("unsupported operator " + op)
}

func arithmetic(a, b types.AttributeValue, op string) (types.AttributeValue, error) {
	an, ok1 := a.(*types.AttributeValueMemberN)
	bn, ok2 := b.(*types.AttributeValueMemberN)
	if !ok1 || !ok2 {
		return nil, validationError("An operand in the update expression has an incorrect data type")
	}
	if x, err := strconv.ParseInt(an.Value, 10, 64); err == nil {
		if y, err := strconv.ParseInt(bn.Value, 10, 64); err == nil {
			if op == "-" {
				return &types.AttributeValueMemberN{Value: strconv.FormatInt(x-y, 10)}, nil
			}
			return &types.AttributeValueMemberN{Value: strconv.FormatInt(x+y, 10)}, nil
		}
	}
	x, err := strconv.ParseFloat(an.Value, 64)
	if err != nil {
		return nil, err
	}
	y, err := strconv.ParseFloat(bn.Value, 64)
	if err != nil {
		return nil, err
	}
	if op == "-" {
		return &types.AttributeValueMemberN{Value: strconv.FormatFloat(x-y, 'f', -1, 64)}, nil
	}
	return &types.AttributeValueMemberN{Value: strconv.FormatFloat(x+y, 'f', -1, 64)}, nil
}

func scalarString(v types.AttributeValue) (string, error) {
	switch x := v.(type) {
	case *types.AttributeValueMemberS:
		return x.Value, nil
	case *types.AttributeValueMemberN:
		return x.Value, nil
	case *types.AttributeValueMemberBOOL:
		return strconv.FormatBool(x.Value), nil
	}
	return "", errors.New("not a scalar")
}

func copyItem(m map[string]types.AttributeValue) map[string]types.AttributeValue {
	if m == nil {
		return nil
	}
	out := make(map[string]types.AttributeValue, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v types.AttributeValue) types.AttributeValue {
	switch x := v.(type) {
	case *types.AttributeValueMemberM:
		return &types.AttributeValueMemberM{Value: copyItem(x.Value)}
	case *types.AttributeValueMemberL:
		l := make([]types.AttributeValue, len(x.Value))
		for i, e := range x.Value {
			l[i] = copyValue(e)
		}
		return &types.AttributeValueMemberL{Value: l}
	case *types.AttributeValueMemberS:
		return &types.AttributeValueMemberS{Value: x.Value}
	case *types.AttributeValueMemberN:
		return &types.AttributeValueMemberN{Value: x.Value}
	case *types.AttributeValueMemberBOOL:
		return &types.AttributeValueMemberBOOL{Value: x.Value}
	case *types.AttributeValueMemberSS:
		return &types.AttributeValueMemberSS{Value: append([]string(nil), x.Value...)}
	}
	return v
}

func validationError(msg string) error {
	return &smithy.GenericAPIError{Code: "ValidationException", Message: msg}
}

func strPtr(s string) *string { return &s }
