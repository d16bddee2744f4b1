package counter

import (
	"strconv"

	"github.com/vango-dev/vdombridge/pkg/protocol"
	"github.com/vango-dev/vdombridge/pkg/render"
	"github.com/vango-dev/vdombridge/pkg/vdom"
)

// View renders the counter: the count, a line break, then the increment
// and decrement buttons. Each button's onclick carries the action it sends.
func View(s State) *vdom.VNode {
	return vdom.Div(
		vdom.Text(strconv.FormatUint(s.Count, 10)),
		vdom.Br(),
		vdom.Button(
			vdom.Prop("onclick", protocol.NewAction(Increment)),
			"increment",
		),
		vdom.Button(
			vdom.Prop("onclick", protocol.NewAction(Decrement)),
			"decrement",
		),
	)
}

// NewRenderer returns a memoized View renderer.
func NewRenderer() render.Renderer[State] {
	return render.NewMemo[State](render.Func[State](View))
}
