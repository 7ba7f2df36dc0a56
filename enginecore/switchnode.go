package enginecore

func (e *Engine) evalSwitch(entry *NodeDefEntry, st *nodeState) {
	def := &entry.Switch

	if !st.positionSet {
		st.position = def.Default
		st.positionSet = true
	}

	upCur := e.readBool(def.UpRef)
	downCur := e.readBool(def.DownRef)
	upEdge := edgeFired(def.UpEdge, st.prevUp, upCur)
	downEdge := edgeFired(def.DownEdge, st.prevDown, downCur)
	st.prevUp = upCur
	st.prevDown = downCur

	if upEdge && st.position < def.Last {
		st.position++
	}
	if downEdge && st.position > def.First {
		st.position--
	}

	e.writeInt(entry.Output, st.position*1000)
}
