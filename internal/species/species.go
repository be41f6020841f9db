// Package species is the static FIA species reference: species code
// to common and scientific name. Used for labeling results only,
// never for computation.
package species

import (
	"sort"
	"strconv"
	"strings"
)

// Info names one species.
type Info struct {
	Code           uint16 `json:"spcd"`
	CommonName     string `json:"common_name"`
	ScientificName string `json:"scientific_name"`
}

// table is derived from the USDA Forest Service FIA reference
// species table.
var table = map[uint16]Info{
	110: {110, "shortleaf pine", "Pinus echinata"},
	111: {111, "sand pine", "Pinus clausa"},
	108: {108, "lodgepole pine", "Pinus contorta"},
	117: {117, "jack pine", "Pinus banksiana"},
	121: {121, "longleaf pine", "Pinus palustris"},
	122: {122, "ponderosa pine", "Pinus ponderosa"},
	123: {123, "Apache pine", "Pinus engelmannii"},
	125: {125, "Jeffrey pine", "Pinus jeffreyi"},
	126: {126, "sugar pine", "Pinus lambertiana"},
	127: {127, "western white pine", "Pinus monticola"},
	128: {128, "whitebark pine", "Pinus albicaulis"},
	129: {129, "limber pine", "Pinus flexilis"},
	131: {131, "slash pine", "Pinus elliottii"},
	132: {132, "eastern white pine", "Pinus strobus"},
	133: {133, "spruce pine", "Pinus glabra"},
	134: {134, "pitch pine", "Pinus rigida"},
	135: {135, "pond pine", "Pinus serotina"},
	136: {136, "Table Mountain pine", "Pinus pungens"},
	137: {137, "Virginia pine", "Pinus virginiana"},
	138: {138, "red pine", "Pinus resinosa"},
	316: {316, "loblolly pine", "Pinus taeda"},
	202: {202, "Douglas-fir", "Pseudotsuga menziesii"},
	11:  {11, "balsam fir", "Abies balsamea"},
	15:  {15, "white fir", "Abies concolor"},
	17:  {17, "grand fir", "Abies grandis"},
	19:  {19, "Pacific silver fir", "Abies amabilis"},
	20:  {20, "noble fir", "Abies procera"},
	21:  {21, "California red fir", "Abies magnifica"},
	22:  {22, "subalpine fir", "Abies lasiocarpa"},
	90:  {90, "white spruce", "Picea glauca"},
	91:  {91, "black spruce", "Picea mariana"},
	92:  {92, "red spruce", "Picea rubens"},
	93:  {93, "Engelmann spruce", "Picea engelmannii"},
	94:  {94, "blue spruce", "Picea pungens"},
	95:  {95, "Sitka spruce", "Picea sitchensis"},
	97:  {97, "Norway spruce", "Picea abies"},
	261: {261, "eastern hemlock", "Tsuga canadensis"},
	263: {263, "western hemlock", "Tsuga heterophylla"},
	264: {264, "mountain hemlock", "Tsuga mertensiana"},
	64:  {64, "Alaska yellow-cedar", "Callitropsis nootkatensis"},
	73:  {73, "western redcedar", "Thuja plicata"},
	81:  {81, "incense-cedar", "Calocedrus decurrens"},
	241: {241, "Atlantic white-cedar", "Chamaecyparis thyoides"},
	242: {242, "Port-Orford-cedar", "Chamaecyparis lawsoniana"},
	800: {800, "white oak", "Quercus alba"},
	806: {806, "swamp white oak", "Quercus bicolor"},
	813: {813, "Oregon white oak", "Quercus garryana"},
	814: {814, "bur oak", "Quercus macrocarpa"},
	815: {815, "swamp chestnut oak", "Quercus michauxii"},
	816: {816, "chinkapin oak", "Quercus muehlenbergii"},
	818: {818, "chestnut oak", "Quercus montana"},
	820: {820, "post oak", "Quercus stellata"},
	824: {824, "overcup oak", "Quercus lyrata"},
	826: {826, "live oak", "Quercus virginiana"},
	802: {802, "northern red oak", "Quercus rubra"},
	809: {809, "scarlet oak", "Quercus coccinea"},
	810: {810, "pin oak", "Quercus palustris"},
	812: {812, "Shumard oak", "Quercus shumardii"},
	821: {821, "southern red oak", "Quercus falcata"},
	823: {823, "water oak", "Quercus nigra"},
	827: {827, "willow oak", "Quercus phellos"},
	833: {833, "black oak", "Quercus velutina"},
	837: {837, "laurel oak", "Quercus laurifolia"},
	311: {311, "sugar maple", "Acer saccharum"},
	312: {312, "black maple", "Acer nigrum"},
	313: {313, "silver maple", "Acer saccharinum"},
	314: {314, "red maple", "Acer rubrum"},
	315: {315, "bigleaf maple", "Acer macrophyllum"},
	317: {317, "boxelder", "Acer negundo"},
	318: {318, "striped maple", "Acer pensylvanicum"},
	400: {400, "pignut hickory", "Carya glabra"},
	401: {401, "pecan", "Carya illinoinensis"},
	402: {402, "water hickory", "Carya aquatica"},
	403: {403, "bitternut hickory", "Carya cordiformis"},
	404: {404, "shagbark hickory", "Carya ovata"},
	405: {405, "shellbark hickory", "Carya laciniosa"},
	407: {407, "mockernut hickory", "Carya tomentosa"},
	409: {409, "nutmeg hickory", "Carya myristiciformis"},
	371: {371, "yellow birch", "Betula alleghaniensis"},
	372: {372, "sweet birch", "Betula lenta"},
	373: {373, "paper birch", "Betula papyrifera"},
	375: {375, "river birch", "Betula nigra"},
	376: {376, "gray birch", "Betula populifolia"},
	541: {541, "white ash", "Fraxinus americana"},
	542: {542, "black ash", "Fraxinus nigra"},
	543: {543, "green ash", "Fraxinus pennsylvanica"},
	544: {544, "blue ash", "Fraxinus quadrangulata"},
	741: {741, "balsam poplar", "Populus balsamifera"},
	742: {742, "eastern cottonwood", "Populus deltoides"},
	743: {743, "bigtooth aspen", "Populus grandidentata"},
	746: {746, "black cottonwood", "Populus trichocarpa"},
	747: {747, "quaking aspen", "Populus tremuloides"},
	531: {531, "yellow-poplar", "Liriodendron tulipifera"},
	611: {611, "sweetgum", "Liquidambar styraciflua"},
	621: {621, "American sycamore", "Platanus occidentalis"},
	631: {631, "red alder", "Alnus rubra"},
	701: {701, "black cherry", "Prunus serotina"},
	762: {762, "American basswood", "Tilia americana"},
	951: {951, "American beech", "Fagus grandifolia"},
	971: {971, "American elm", "Ulmus americana"},
	972: {972, "slippery elm", "Ulmus rubra"},
	973: {973, "winged elm", "Ulmus alata"},
	975: {975, "cedar elm", "Ulmus crassifolia"},
	981: {981, "tanoak", "Notholithocarpus densiflorus"},
	221: {221, "baldcypress", "Taxodium distichum"},
	231: {231, "redwood", "Sequoia sempervirens"},
	116: {116, "western larch", "Larix occidentalis"},
	211: {211, "western juniper", "Juniperus occidentalis"},
	602: {602, "black walnut", "Juglans nigra"},
	901: {901, "American chestnut", "Castanea dentata"},
	460: {460, "flowering dogwood", "Cornus florida"},
	591: {591, "eastern redbud", "Cercis canadensis"},
	652: {652, "Osage-orange", "Maclura pomifera"},
}

// Lookup returns the species for a code.
func Lookup(code uint16) (Info, bool) {
	info, ok := table[code]
	return info, ok
}

// Label returns the common name for a code, or "species <code>" when
// unknown.
func Label(code uint16) string {
	if info, ok := table[code]; ok {
		return info.CommonName
	}
	return "species " + strconv.Itoa(int(code))
}

// Search returns up to limit species whose common name contains the
// term, case-insensitively, in code order.
func Search(term string, limit int) []Info {
	term = strings.ToLower(term)
	out := make([]Info, 0, limit)
	for _, info := range All() {
		if strings.Contains(strings.ToLower(info.CommonName), term) {
			out = append(out, info)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out
}

// All returns every species, sorted by code.
func All() []Info {
	out := make([]Info, 0, len(table))
	for _, info := range table {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
