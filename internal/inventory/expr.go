package inventory

import (
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// update accumulates one UpdateItem expression. Every path segment goes through a
// #placeholder so colors and sizes never collide with reserved words.
type update struct {
	sets    []string
	removes []string
	conds   []string
	names   map[string]string
	values  map[string]types.AttributeValue
}

func newUpdate() *update {
	return &update{
		names:  map[string]string{},
		values: map[string]types.AttributeValue{},
	}
}

func (u *update) name(placeholder, attr string) string {
	u.names[placeholder] = attr
	return placeholder
}

func (u *update) value(placeholder string, v types.AttributeValue) string {
	u.values[placeholder] = v
	return placeholder
}

// leafPath registers the placeholders for a leaf and returns its document path.
// suffix keeps several leaves of one product apart inside a single expression.
func (u *update) leafPath(l Leaf, suffix string) string {
	if l.Color == "" {
		return u.name("#stk", "stock")
	}
	base := u.name("#v", "variants") + "." + u.name("#c"+suffix, l.Color)
	if l.Size == "" {
		return base + "." + u.name("#stk", "stock")
	}
	return base + "." + u.name("#sz", "sizes") + "." + u.name("#s"+suffix, l.Size)
}

func (u *update) colorPath(color, suffix string) string {
	return u.name("#v", "variants") + "." + u.name("#c"+suffix, color)
}

func (u *update) sizesPath(color string) string {
	return u.colorPath(color, "") + "." + u.name("#sz", "sizes")
}

func (u *update) set(clause string)   { u.sets = append(u.sets, clause) }
func (u *update) remove(path string)  { u.removes = append(u.removes, path) }
func (u *update) require(cond string) { u.conds = append(u.conds, cond) }

// touch bumps the optimistic version and the update timestamp.
func (u *update) touch(now time.Time) {
	u.set(u.name("#ver", "version") + " = #ver + " + u.value(":one", numberInt(1)))
	u.set(u.name("#ua", "updated_at") + " = " + u.value(":ua", &types.AttributeValueMemberS{Value: now.UTC().Format(time.RFC3339Nano)}))
}

func (u *update) expression() string {
	var b strings.Builder
	if len(u.sets) > 0 {
		b.WriteString("SET ")
		b.WriteString(strings.Join(u.sets, ", "))
	}
	if len(u.removes) > 0 {
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString("REMOVE ")
		b.WriteString(strings.Join(u.removes, ", "))
	}
	return b.String()
}

func (u *update) condition() *string {
	if len(u.conds) == 0 {
		return nil
	}
	c := strings.Join(u.conds, " AND ")
	return &c
}

func numberInt(n int) *types.AttributeValueMemberN {
	return &types.AttributeValueMemberN{Value: strconv.Itoa(n)}
}

func numberInt64(n int64) *types.AttributeValueMemberN {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(n, 10)}
}
